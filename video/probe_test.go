package video

import (
	"context"
	"testing"

	"github.com/livepeer/catalyst-ingest/errors"
	"github.com/stretchr/testify/require"
	"gopkg.in/vansante/go-ffprobe.v2"
)

func TestItRejectsWhenNoVideoTrackPresent(t *testing.T) {
	_, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType: "audio",
			},
		},
	}, ".mp4")
	require.ErrorContains(t, err, "no video stream found")
}

func TestItRejectsWhenMJPEGVideoTrackPresent(t *testing.T) {
	_, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType: "video",
				CodecName: "mjpeg",
			},
		},
	}, ".mp4")
	require.ErrorContains(t, err, "mjpeg is not supported")

	_, err = parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType: "video",
				CodecName: "jpeg",
			},
		},
	}, ".mp4")
	require.ErrorContains(t, err, "jpeg is not supported")
}

func TestItRejectsWhenFormatMissing(t *testing.T) {
	_, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType: "video",
			},
		},
	}, ".mp4")
	require.ErrorContains(t, err, "format information missing")
}

func TestItParsesProbeOutput(t *testing.T) {
	md, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType:    "video",
				CodecName:    "H264",
				Width:        1920,
				Height:       1080,
				AvgFrameRate: "30000/1001",
				BitRate:      "4000000",
				Duration:     "65.5",
			},
			{
				CodecType: "audio",
				CodecName: "aac",
			},
		},
		Format: &ffprobe.Format{
			FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
			Size:       "32750000",
		},
	}, ".MP4")
	require.NoError(t, err)
	require.Equal(t, 65.5, md.Duration)
	require.Equal(t, int64(1920), md.Width)
	require.Equal(t, int64(1080), md.Height)
	require.Equal(t, "h264", md.Codec)
	require.Equal(t, int64(4000000), md.Bitrate)
	require.InDelta(t, 29.97, md.FPS, 0.01)
	require.Equal(t, int64(32750000), md.SizeBytes)
	require.Equal(t, "mp4", md.Container)
	require.Equal(t, "aac", md.AudioCodec)
	require.Equal(t, "1920x1080", md.Resolution())
}

func TestItFallsBackToFormatValues(t *testing.T) {
	md, err := parseProbeOutput(&ffprobe.ProbeData{
		Streams: []*ffprobe.Stream{
			{
				CodecType:  "video",
				CodecName:  "vp9",
				RFrameRate: "25/1",
			},
		},
		Format: &ffprobe.Format{
			FormatName:      "matroska,webm",
			BitRate:         "1500000",
			DurationSeconds: 12.25,
		},
	}, ".webm")
	require.NoError(t, err)
	require.Equal(t, 12.25, md.Duration)
	require.Equal(t, int64(1500000), md.Bitrate)
	require.Equal(t, 25.0, md.FPS)
	require.Equal(t, "webm", md.Container)
	require.Empty(t, md.AudioCodec)
}

func TestContainerName(t *testing.T) {
	require.Equal(t, "mp4", containerName("mov,mp4,m4a,3gp,3g2,mj2", ".mp4"))
	require.Equal(t, "mov", containerName("mov,mp4,m4a,3gp,3g2,mj2", ".mov"))
	require.Equal(t, "mp4", containerName("mov,mp4,m4a,3gp,3g2,mj2", ".m4v"))
	require.Equal(t, "mov", containerName("mov,mp4,m4a,3gp,3g2,mj2", ".bin"))
	require.Equal(t, "avi", containerName("avi", ".mp4"))
}

func TestParseFps(t *testing.T) {
	fps, err := parseFps("0/0")
	require.NoError(t, err)
	require.Zero(t, fps)

	fps, err = parseFps("24")
	require.NoError(t, err)
	require.Equal(t, 24.0, fps)

	_, err = parseFps("30/0")
	require.ErrorContains(t, err, "invalid framerate denominator")

	_, err = parseFps("a/b")
	require.Error(t, err)
}

func TestProbeMissingFile(t *testing.T) {
	_, err := Probe{}.ProbeFile(context.Background(), "requestID", "/does/not/exist.mp4")
	var analysisErr *errors.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	require.Equal(t, "/does/not/exist.mp4", analysisErr.Path)
}

func TestProbeDirectory(t *testing.T) {
	_, err := Probe{}.ProbeFile(context.Background(), "requestID", t.TempDir())
	require.ErrorContains(t, err, "not a regular file")
}

func TestValidate(t *testing.T) {
	good := VideoMetadata{Duration: 1, Width: 320, Height: 240}
	require.NoError(t, good.Validate())

	short := good
	short.Duration = 0.5
	err := short.Validate()
	var validationErr *errors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Reason, "duration")
	require.True(t, errors.IsUnretriable(err))

	small := good
	small.Height = 200
	err = small.Validate()
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Reason, "320x200")
}
