package pipeline

import (
	"testing"

	"github.com/livepeer/catalyst-ingest/progress"
	"github.com/stretchr/testify/require"
)

func TestEstimateRemainingDecreasesThroughTheStages(t *testing.T) {
	const size = 40 * 1024 * 1024
	analyzing := estimateRemaining(etaInput{Status: progress.StatusAnalyzing, SizeBytes: size})
	transcoding := estimateRemaining(etaInput{Status: progress.StatusTranscoding, DurationSecs: 65, SizeBytes: size, Reencode: false})
	uploading := estimateRemaining(etaInput{Status: progress.StatusUploadingStorage, UploadBytes: size, UploadedBytes: size / 2})
	registering := estimateRemaining(etaInput{Status: progress.StatusRegistering})

	require.Greater(t, analyzing, transcoding)
	require.Greater(t, transcoding, uploading)
	require.Greater(t, uploading, registering)
	require.Equal(t, int64(registrationSecs), registering)
	require.Zero(t, estimateRemaining(etaInput{Status: progress.StatusCompleted}))
}

func TestTranscodeEstimate(t *testing.T) {
	require.Equal(t, 6.5, transcodeEstimate(65, false))
	require.Equal(t, 32.5, transcodeEstimate(65, true))
}

func TestEstimateRemainingTranscoding(t *testing.T) {
	// 65s copy: 6.5 + 10MiB at 4MiB/s + 10
	eta := estimateRemaining(etaInput{Status: progress.StatusTranscoding, DurationSecs: 65, SizeBytes: 10 * 1024 * 1024})
	require.Equal(t, int64(19), eta)
}
