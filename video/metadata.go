package video

import (
	"fmt"

	"github.com/livepeer/catalyst-ingest/config"
	"github.com/livepeer/catalyst-ingest/errors"
)

// VideoMetadata is produced once per job by the Prober and never modified
type VideoMetadata struct {
	Duration   float64 `json:"duration"`
	Width      int64   `json:"width"`
	Height     int64   `json:"height"`
	Codec      string  `json:"codec"`
	Bitrate    int64   `json:"bitrate"`
	FPS        float64 `json:"fps"`
	SizeBytes  int64   `json:"size_bytes"`
	Container  string  `json:"container"`
	AudioCodec string  `json:"audio_codec,omitempty"`
}

func (m VideoMetadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// Validate enforces the minimum duration and resolution we accept
func (m VideoMetadata) Validate() error {
	if m.Duration < config.MinDurationSecs {
		return errors.NewValidationError("duration %.2fs is shorter than the %.0fs minimum", m.Duration, config.MinDurationSecs)
	}
	if m.Width < config.MinWidth || m.Height < config.MinHeight {
		return errors.NewValidationError("resolution %s is below the %dx%d minimum", m.Resolution(), config.MinWidth, config.MinHeight)
	}
	return nil
}

// Segment is a chunk of the source ready to be uploaded
type Segment struct {
	Index     int     `json:"index"`
	LocalPath string  `json:"local_path"`
	Duration  float64 `json:"duration"`
}

type SegmentationResult struct {
	Segments []Segment
	Metadata VideoMetadata
	// Reencoded is true when the slow transcode-and-segment path was used
	Reencoded bool
}

func (r SegmentationResult) TotalDuration() float64 {
	var total float64
	for _, s := range r.Segments {
		total += s.Duration
	}
	return total
}
