package video

import (
	"fmt"
	"path/filepath"
	"strings"
)

// The only source layout that can be segmented without re-encoding
const (
	AcceptedContainer = "mp4"
	AcceptedCodec     = "h264"
)

type SkipDecision struct {
	Skip   bool   `json:"skip"`
	Reason string `json:"reason,omitempty"`
}

// ShouldSkipTranscode reports whether the source can go through the
// stream-copy segmenting path. It has no side effects.
func ShouldSkipTranscode(md VideoMetadata, path string) SkipDecision {
	container := strings.ToLower(md.Container)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	codec := strings.ToLower(md.Codec)

	var reasons []string
	if container != AcceptedContainer {
		reasons = append(reasons, fmt.Sprintf("container %q is not %s", md.Container, AcceptedContainer))
	} else if ext != AcceptedContainer {
		reasons = append(reasons, fmt.Sprintf("file extension %q does not match the %s container", filepath.Ext(path), AcceptedContainer))
	}
	if codec != AcceptedCodec {
		reasons = append(reasons, fmt.Sprintf("video codec %q is not %s", md.Codec, AcceptedCodec))
	}

	if len(reasons) > 0 {
		return SkipDecision{Skip: false, Reason: strings.Join(reasons, "; ")}
	}
	return SkipDecision{Skip: true}
}
