package video

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	ingesterrors "github.com/livepeer/catalyst-ingest/errors"
	"github.com/livepeer/catalyst-ingest/log"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const thumbnailFilename = "thumbnail.jpg"

// GenerateThumbnail writes a single JPEG frame to workDir, scaled to fit
// ThumbnailBox, and returns its path.
func (e *Engine) GenerateThumbnail(ctx context.Context, requestID, sourcePath string, md VideoMetadata, workDir string) (string, error) {
	out := filepath.Join(workDir, thumbnailFilename)
	args := thumbnailArgs(sourcePath, out, thumbnailOffset(md.Duration))

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if _, err := e.Runner.Run(ctx, requestID, e.FFmpegPath, args...); err != nil {
		return "", &ingesterrors.ThumbnailError{Path: sourcePath, Cause: err}
	}

	info, err := os.Stat(out)
	if err != nil {
		return "", &ingesterrors.ThumbnailError{Path: sourcePath, Cause: err}
	}
	if info.Size() == 0 {
		return "", &ingesterrors.ThumbnailError{Path: sourcePath, Cause: fmt.Errorf("empty thumbnail written")}
	}
	log.Log(requestID, "generated thumbnail", "path", out, "bytes", info.Size())
	return out, nil
}

// Seeking to the very end of a short clip yields no frame, so stay within
// the first half of it.
func thumbnailOffset(duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return math.Min(ThumbnailOffsetSecs, duration/2)
}

func thumbnailArgs(source, out string, offset float64) []string {
	return ffmpeg.Input(source, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", offset)}).
		Output(out, ffmpeg.KwArgs{
			"frames:v": 1,
			"q:v":      2,
			"vf":       fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", ThumbnailBox.Width, ThumbnailBox.Height),
		}).
		OverWriteOutput().
		GetArgs()
}
