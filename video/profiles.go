package video

// EncodingProfile is the single quality preset used on the transcode path
type EncodingProfile struct {
	Name         string
	Width        int64
	Height       int64
	MaxBitrate   string
	BufSize      string
	AudioBitrate string
	Preset       string
	CRF          int
}

var DefaultProfile720p = EncodingProfile{
	Name:         "720p0",
	Width:        1280,
	Height:       720,
	MaxBitrate:   "2500k",
	BufSize:      "5000k",
	AudioBitrate: "128k",
	Preset:       "veryfast",
	CRF:          23,
}

// ThumbnailBox is the bounding box thumbnails are scaled to fit into
var ThumbnailBox = struct{ Width, Height int64 }{1280, 720}

// Position of the thumbnail frame, clamped to the source duration
const ThumbnailOffsetSecs = 2.0
