package video

import (
	"encoding/json"
	"fmt"
)

const BlobSetTypeHLS = "hls"

// UploadedSegment maps a segment to the content id it was stored under
type UploadedSegment struct {
	Index     int     `json:"index"`
	ContentID string  `json:"contentId"`
	Duration  float64 `json:"duration"`
}

// StoredBlobIDSet is the durable description of a stored video. It is kept in
// the catalog and read back by the playback proxy to build a playlist.
type StoredBlobIDSet struct {
	Type               string            `json:"type"`
	Segments           []UploadedSegment `json:"segments"`
	ThumbnailContentID string            `json:"thumbnailContentId"`
}

func (s StoredBlobIDSet) Validate() error {
	if s.Type != BlobSetTypeHLS {
		return fmt.Errorf("unsupported blob id set type %q", s.Type)
	}
	if len(s.Segments) == 0 {
		return fmt.Errorf("blob id set has no segments")
	}
	for i, seg := range s.Segments {
		if seg.Index != i {
			return fmt.Errorf("blob id set segment at position %d has index %d", i, seg.Index)
		}
		if seg.ContentID == "" {
			return fmt.Errorf("blob id set segment %d has no content id", seg.Index)
		}
	}
	if s.ThumbnailContentID == "" {
		return fmt.Errorf("blob id set has no thumbnail content id")
	}
	return nil
}

func (s StoredBlobIDSet) TotalDuration() float64 {
	var total float64
	for _, seg := range s.Segments {
		total += seg.Duration
	}
	return total
}

func MarshalBlobIDSet(s StoredBlobIDSet) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

func ParseBlobIDSet(data []byte) (StoredBlobIDSet, error) {
	var s StoredBlobIDSet
	if err := json.Unmarshal(data, &s); err != nil {
		return StoredBlobIDSet{}, fmt.Errorf("failed to parse blob id set: %w", err)
	}
	if err := s.Validate(); err != nil {
		return StoredBlobIDSet{}, err
	}
	return s, nil
}
