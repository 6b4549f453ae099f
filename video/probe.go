package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/livepeer/catalyst-ingest/errors"
	"github.com/livepeer/catalyst-ingest/log"
	"gopkg.in/vansante/go-ffprobe.v2"
)

var unsupportedVideoCodecList = []string{"mjpeg", "jpeg", "png", "gif"}

type Prober interface {
	ProbeFile(ctx context.Context, requestID, path string) (VideoMetadata, error)
}

type Probe struct {
	Timeout time.Duration
}

func (p Probe) ProbeFile(ctx context.Context, requestID, path string) (VideoMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return VideoMetadata{}, &errors.AnalysisError{Path: path, Cause: err}
	}
	if !info.Mode().IsRegular() {
		return VideoMetadata{}, &errors.AnalysisError{Path: path, Cause: fmt.Errorf("not a regular file")}
	}

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	var data *ffprobe.ProbeData
	operation := func() error {
		probeCtx, probeCancel := context.WithTimeout(ctx, timeout)
		defer probeCancel()
		data, err = ffprobe.ProbeURL(probeCtx, path, "-loglevel", "error")
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0 // don't impose a timeout as part of the retries
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backOff, 2), ctx)); err != nil {
		return VideoMetadata{}, &errors.AnalysisError{Path: path, Cause: fmt.Errorf("error probing: %w", err)}
	}

	md, err := parseProbeOutput(data, filepath.Ext(path))
	if err != nil {
		return VideoMetadata{}, &errors.AnalysisError{Path: path, Cause: err}
	}
	if md.SizeBytes == 0 {
		md.SizeBytes = info.Size()
	}
	log.Log(requestID, "probed source file", "duration", md.Duration, "resolution", md.Resolution(), "codec", md.Codec, "container", md.Container)
	return md, nil
}

func parseProbeOutput(probeData *ffprobe.ProbeData, ext string) (VideoMetadata, error) {
	if probeData == nil {
		return VideoMetadata{}, fmt.Errorf("no probe data")
	}
	videoStream := probeData.FirstVideoStream()
	if videoStream == nil {
		return VideoMetadata{}, fmt.Errorf("error checking for video: no video stream found")
	}
	for _, codec := range unsupportedVideoCodecList {
		if strings.ToLower(videoStream.CodecName) == codec {
			return VideoMetadata{}, fmt.Errorf("error checking for video: %s is not supported", videoStream.CodecName)
		}
	}
	// We rely on this being present to get required information about the input video, so error out if it isn't
	if probeData.Format == nil {
		return VideoMetadata{}, fmt.Errorf("error parsing input video: format information missing")
	}

	bitRateValue := videoStream.BitRate
	if bitRateValue == "" {
		bitRateValue = probeData.Format.BitRate
	}
	var bitrate int64
	if bitRateValue != "" {
		var err error
		bitrate, err = strconv.ParseInt(bitRateValue, 10, 64)
		if err != nil {
			return VideoMetadata{}, fmt.Errorf("error parsing bitrate from probed data: %w", err)
		}
	}

	var size int64
	if probeData.Format.Size != "" {
		var err error
		size, err = strconv.ParseInt(probeData.Format.Size, 10, 64)
		if err != nil {
			return VideoMetadata{}, fmt.Errorf("error parsing filesize from probed data: %w", err)
		}
	}

	fps, err := parseFps(videoStream.AvgFrameRate)
	if err != nil {
		return VideoMetadata{}, fmt.Errorf("error parsing avg fps from probed data: %w", err)
	}
	if fps == 0 {
		fps, err = parseFps(videoStream.RFrameRate)
		if err != nil {
			return VideoMetadata{}, fmt.Errorf("error parsing real fps from probed data: %w", err)
		}
	}

	duration, err := strconv.ParseFloat(videoStream.Duration, 64)
	if err != nil || duration <= 0 {
		duration = probeData.Format.DurationSeconds
	}

	md := VideoMetadata{
		Duration:  duration,
		Width:     int64(videoStream.Width),
		Height:    int64(videoStream.Height),
		Codec:     strings.ToLower(videoStream.CodecName),
		Bitrate:   bitrate,
		FPS:       fps,
		SizeBytes: size,
		Container: containerName(probeData.Format.FormatName, ext),
	}
	if audio := probeData.FirstAudioStream(); audio != nil {
		md.AudioCodec = strings.ToLower(audio.CodecName)
	}
	return md, nil
}

// containerName narrows ffprobe's demuxer list (e.g. "mov,mp4,m4a,3gp,3g2,mj2")
// down to a single container using the file extension.
func containerName(formatName, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	formats := strings.Split(strings.ToLower(formatName), ",")
	for _, f := range formats {
		if f == ext {
			return f
		}
	}
	if ext == "m4v" && strings.Contains(formatName, "mp4") {
		return "mp4"
	}
	return formats[0]
}

func parseFps(framerate string) (float64, error) {
	if framerate == "" {
		return 0, nil
	}
	parts := strings.SplitN(framerate, "/", 2)
	if len(parts) < 2 {
		fps, err := strconv.ParseFloat(framerate, 64)
		if err != nil {
			return 0, fmt.Errorf("error parsing framerate: %w", err)
		}
		return fps, nil
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate numerator: %w", err)
	}
	den, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate denominator: %w", err)
	}

	if den == 0 {
		// 0/0 can be valid for a video track i.e. mjpeg
		if num == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("invalid framerate denominator 0")
	}

	return float64(num) / float64(den), nil
}
