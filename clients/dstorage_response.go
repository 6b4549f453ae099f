package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StoreOutcome is one of the three results the storage network reports for a
// store operation: NewlyCreated, AlreadyCertified or MarkedDeletable.
type StoreOutcome interface {
	Kind() string
	normalize() (BlobUpload, error)
}

type BlobObject struct {
	ID        string `json:"id"`
	BlobID    string `json:"blobId"`
	Size      int64  `json:"size,omitempty"`
	Deletable bool   `json:"deletable,omitempty"`
}

// NewlyCreated means the blob was written and paid for by this request
type NewlyCreated struct {
	BlobObject BlobObject `json:"blobObject"`
	Cost       int64      `json:"cost"`
}

// AlreadyCertified means the network already held the blob, nothing was paid
type AlreadyCertified struct {
	BlobID   string `json:"blobId"`
	EndEpoch int64  `json:"endEpoch,omitempty"`
}

// MarkedDeletable means the blob is stored but may be deleted by its owner
// before its epochs run out
type MarkedDeletable struct {
	BlobID   string `json:"blobId"`
	Cost     int64  `json:"cost"`
	EndEpoch int64  `json:"endEpoch,omitempty"`
}

func (NewlyCreated) Kind() string     { return "newlyCreated" }
func (AlreadyCertified) Kind() string { return "alreadyCertified" }
func (MarkedDeletable) Kind() string  { return "markedDeletable" }

func (n NewlyCreated) normalize() (BlobUpload, error) {
	return newBlobUpload(n.BlobObject.BlobID, n.Cost)
}

func (a AlreadyCertified) normalize() (BlobUpload, error) {
	return newBlobUpload(a.BlobID, 0)
}

func (m MarkedDeletable) normalize() (BlobUpload, error) {
	return newBlobUpload(m.BlobID, m.Cost)
}

// BlobUpload is what every StoreOutcome comes down to
type BlobUpload struct {
	ContentID string `json:"contentId"`
	CostUnits int64  `json:"costUnits"`
}

func newBlobUpload(id string, cost int64) (BlobUpload, error) {
	if id == "" {
		return BlobUpload{}, fmt.Errorf("store response has no blob id")
	}
	if cost < 0 {
		return BlobUpload{}, fmt.Errorf("store response has negative cost %d", cost)
	}
	return BlobUpload{ContentID: id, CostUnits: cost}, nil
}

// NormalizeStoreOutcome maps any outcome to a BlobUpload
func NormalizeStoreOutcome(o StoreOutcome) (BlobUpload, error) {
	if o == nil {
		return BlobUpload{}, fmt.Errorf("empty store outcome")
	}
	return o.normalize()
}

// ParseStoreResponse decodes the output of the CLI or the publisher. Both the
// CLI's `[{"blobStoreResult": {...}, "path": ...}]` and the publisher's bare
// `{"newlyCreated": {...}}` forms are accepted. Anything else is an error.
func ParseStoreResponse(data []byte) (StoreOutcome, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty store response")
	}

	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("malformed store response: %w", err)
		}
		if len(items) != 1 {
			return nil, fmt.Errorf("expected a single store result, got %d", len(items))
		}
		return ParseStoreResponse(items[0])
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("malformed store response: %w", err)
	}
	if inner, ok := fields["blobStoreResult"]; ok {
		return ParseStoreResponse(inner)
	}

	var outcome StoreOutcome
	var found []string
	for kind, raw := range fields {
		var o StoreOutcome
		var err error
		switch kind {
		case "newlyCreated":
			o, err = decodeOutcome[NewlyCreated](raw)
		case "alreadyCertified":
			o, err = decodeOutcome[AlreadyCertified](raw)
		case "markedDeletable":
			o, err = decodeOutcome[MarkedDeletable](raw)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("malformed %s store response: %w", kind, err)
		}
		outcome = o
		found = append(found, kind)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("unknown store response shape: %s", truncate(string(data), 200))
	case 1:
		return outcome, nil
	default:
		return nil, fmt.Errorf("ambiguous store response with %d results", len(found))
	}
}

func decodeOutcome[T StoreOutcome](raw json.RawMessage) (StoreOutcome, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
