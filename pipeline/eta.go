package pipeline

import (
	"math"

	"github.com/livepeer/catalyst-ingest/progress"
)

// Heuristics behind estimatedSecondsRemaining. They only feed the progress
// record and nothing waits on them.
const (
	analysisSecs     = 5.0
	registrationSecs = 10.0
	// seconds of processing per second of video
	copyMultiplier     = 0.1
	reencodeMultiplier = 0.5
	// assumed sustained upload throughput to the storage network
	uploadBytesPerSec = 4 * 1024 * 1024
	// used to guess the duration of a file that hasn't been probed yet
	assumedBitsPerSec = 5_000_000
)

type etaInput struct {
	Status        progress.Status
	DurationSecs  float64
	SizeBytes     int64
	Reencode      bool
	UploadBytes   int64
	UploadedBytes int64
}

func transcodeEstimate(durationSecs float64, reencode bool) float64 {
	if reencode {
		return durationSecs * reencodeMultiplier
	}
	return durationSecs * copyMultiplier
}

func networkEstimate(bytes int64) float64 {
	if bytes <= 0 {
		return 0
	}
	return float64(bytes) / uploadBytesPerSec
}

// estimateRemaining returns whole seconds left for a job in the given state.
// Before probing we assume a re-encode and guess the duration from the size.
func estimateRemaining(in etaInput) int64 {
	var secs float64
	switch in.Status {
	case progress.StatusQueued, progress.StatusAnalyzing:
		duration := in.DurationSecs
		if duration <= 0 {
			duration = float64(in.SizeBytes) * 8 / assumedBitsPerSec
		}
		secs = analysisSecs + transcodeEstimate(duration, true) + networkEstimate(in.SizeBytes) + registrationSecs
	case progress.StatusTranscoding:
		secs = transcodeEstimate(in.DurationSecs, in.Reencode) + networkEstimate(in.SizeBytes) + registrationSecs
	case progress.StatusUploadingStorage:
		secs = networkEstimate(in.UploadBytes-in.UploadedBytes) + registrationSecs
	case progress.StatusRegistering:
		secs = registrationSecs
	default:
		return 0
	}
	return int64(math.Ceil(secs))
}
