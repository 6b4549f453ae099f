package video

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/grafov/m3u8"
	"github.com/livepeer/catalyst-ingest/config"
	ingesterrors "github.com/livepeer/catalyst-ingest/errors"
	"github.com/livepeer/catalyst-ingest/log"
	"github.com/livepeer/catalyst-ingest/subprocess"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	segmentsSubdir   = "segments"
	segmentManifest  = "index.m3u8"
	segmentPrefix    = "index"
	segmentExtension = ".ts"
)

// Engine wraps the ffmpeg invocations of the pipeline: thumbnails and segmenting
type Engine struct {
	FFmpegPath    string
	SegmentLength int
	Timeout       time.Duration
	Prober        Prober
	Runner        subprocess.Runner
}

func NewEngine(ffmpegPath string, segmentLength int, timeout time.Duration, prober Prober) *Engine {
	if segmentLength <= 0 {
		segmentLength = config.DefaultSegmentLengthSecs
	}
	return &Engine{
		FFmpegPath:    ffmpegPath,
		SegmentLength: segmentLength,
		Timeout:       timeout,
		Prober:        prober,
		Runner:        subprocess.Exec{},
	}
}

type SegmentRequest struct {
	RequestID  string
	SourcePath string
	WorkDir    string
	// Metadata of the source, probed again when nil
	Metadata *VideoMetadata
}

// GenerateSegments splits the source into ~SegmentLength second MPEG-TS
// segments. Compatible sources are stream-copied, everything else is
// re-encoded to DefaultProfile720p in the same pass.
func (e *Engine) GenerateSegments(ctx context.Context, req SegmentRequest) (SegmentationResult, error) {
	var md VideoMetadata
	if req.Metadata != nil {
		md = *req.Metadata
	} else {
		var err error
		md, err = e.Prober.ProbeFile(ctx, req.RequestID, req.SourcePath)
		if err != nil {
			return SegmentationResult{}, err
		}
	}

	decision := ShouldSkipTranscode(md, req.SourcePath)
	reencode := !decision.Skip
	if reencode {
		log.Log(req.RequestID, "source needs transcoding before segmenting", "reason", decision.Reason)
	}

	segments, err := e.segment(ctx, req, md, reencode)
	if err != nil && !reencode && !errors.Is(err, context.Canceled) {
		// Stream copy can trip over odd but technically compatible files,
		// give it one more go with a full re-encode.
		log.LogError(req.RequestID, "copy segmenting failed, retrying with re-encoding", err)
		reencode = true
		segments, err = e.segment(ctx, req, md, reencode)
	}
	if err != nil {
		return SegmentationResult{}, &ingesterrors.TranscodeError{Path: req.SourcePath, Reencode: reencode, Cause: err}
	}

	return SegmentationResult{Segments: segments, Metadata: md, Reencoded: reencode}, nil
}

func (e *Engine) segment(ctx context.Context, req SegmentRequest, md VideoMetadata, reencode bool) ([]Segment, error) {
	outDir := filepath.Join(req.WorkDir, segmentsSubdir)
	if err := os.RemoveAll(outDir); err != nil {
		return nil, fmt.Errorf("failed to clear segment dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create segment dir: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	args := segmentArgs(req.SourcePath, outDir, e.SegmentLength, reencode)
	if _, err := e.Runner.Run(ctx, req.RequestID, e.FFmpegPath, args...); err != nil {
		return nil, err
	}

	segments, err := readSegmentList(filepath.Join(outDir, segmentManifest), outDir)
	if err != nil {
		return nil, err
	}
	if err := CheckSegments(segments, md.Duration, float64(e.SegmentLength)); err != nil {
		return nil, err
	}
	log.Log(req.RequestID, "segmenting finished", "segments", len(segments), "reencode", reencode, "duration", time.Since(start))
	return segments, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Timeout)
}

func segmentArgs(source, outDir string, segmentLength int, reencode bool) []string {
	outputArgs := ffmpeg.KwArgs{
		"c:a":               "aac",
		"f":                 "segment",
		"segment_list":      filepath.Join(outDir, segmentManifest),
		"segment_list_type": "m3u8",
		"segment_format":    "mpegts",
		"segment_time":      segmentLength,
	}
	if reencode {
		p := DefaultProfile720p
		outputArgs["c:v"] = "libx264"
		outputArgs["preset"] = p.Preset
		outputArgs["crf"] = p.CRF
		outputArgs["maxrate"] = p.MaxBitrate
		outputArgs["bufsize"] = p.BufSize
		outputArgs["pix_fmt"] = "yuv420p"
		outputArgs["vf"] = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,scale=trunc(iw/2)*2:trunc(ih/2)*2", p.Width, p.Height)
		outputArgs["b:a"] = p.AudioBitrate
		outputArgs["sc_threshold"] = 0
		outputArgs["force_key_frames"] = fmt.Sprintf("expr:gte(t,n_forced*%d)", segmentLength)
	} else {
		outputArgs["c:v"] = "copy"
	}

	return ffmpeg.Input(source).
		Output(filepath.Join(outDir, segmentPrefix+"%d"+segmentExtension), outputArgs).
		OverWriteOutput().
		GetArgs()
}

// readSegmentList turns the m3u8 list written by ffmpeg's segment muxer into
// Segments, checking that the files are numbered contiguously from 0.
func readSegmentList(manifestPath, dir string) ([]Segment, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment list: %w", err)
	}
	defer f.Close()

	playlist, listType, err := m3u8.DecodeFrom(f, true)
	if err != nil {
		return nil, fmt.Errorf("failed to decode segment list: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("segment list is not a media playlist")
	}
	mediaPlaylist, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok || mediaPlaylist == nil {
		return nil, fmt.Errorf("failed to parse segment list as MediaPlaylist")
	}

	var segments []Segment
	for _, s := range mediaPlaylist.Segments {
		if s == nil {
			continue
		}
		idx, err := segmentIndex(s.URI)
		if err != nil {
			return nil, err
		}
		if idx != len(segments) {
			return nil, fmt.Errorf("segment %s out of sequence, expected index %d", s.URI, len(segments))
		}
		segments = append(segments, Segment{
			Index:     idx,
			LocalPath: filepath.Join(dir, filepath.Base(s.URI)),
			Duration:  s.Duration,
		})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments produced")
	}
	return segments, nil
}

func segmentIndex(uri string) (int, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(uri), segmentPrefix), segmentExtension)
	i, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("unexpected segment name %s: %w", uri, err)
	}
	return i, nil
}

// CheckSegments verifies that segment indices are 0-based and contiguous and
// that their durations add up to the source duration within one segment.
func CheckSegments(segments []Segment, sourceDuration, tolerance float64) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments produced")
	}
	var total float64
	for i, s := range segments {
		if s.Index != i {
			return fmt.Errorf("segment indices are not contiguous: position %d has index %d", i, s.Index)
		}
		if s.Duration <= 0 {
			return fmt.Errorf("segment %d has no duration", s.Index)
		}
		total += s.Duration
	}
	if sourceDuration > 0 && math.Abs(total-sourceDuration) > tolerance {
		return fmt.Errorf("segment durations add up to %.2fs but the source is %.2fs", total, sourceDuration)
	}
	return nil
}
