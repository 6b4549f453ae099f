package pipeline

import (
	"time"

	"github.com/livepeer/catalyst-ingest/clients"
	"github.com/livepeer/catalyst-ingest/progress"
	"github.com/livepeer/catalyst-ingest/video"
)

// IngestJobPayload is what the request boundary hands over to start a job
type IngestJobPayload struct {
	// Local path of the uploaded file
	SourceFile string
	// Name the file was uploaded under, used for the metadata lookup
	OriginalFilename string
	Title            string
	Description      string
	Genre            string
	// Storage epochs, the configured default when 0
	Epochs         int
	PaymentProofID string
}

// JobInfo is the state of one job. It is only touched by the goroutine
// running the job.
type JobInfo struct {
	IngestJobPayload
	JobID     string
	WorkDir   string
	StartedAt time.Time

	record       progress.Record
	metadata     video.VideoMetadata
	thumbnail    string
	segmentation video.SegmentationResult
	uploadBytes  int64
	blobIDSet    video.StoredBlobIDSet
	storageCost  int64
	receipt      clients.LedgerReceipt
	enrichment   *clients.MovieMetadata
	result       chan bool
}

func (j *JobInfo) eta(status progress.Status, uploadedBytes int64) int64 {
	return estimateRemaining(etaInput{
		Status:        status,
		DurationSecs:  j.metadata.Duration,
		SizeBytes:     j.record.FileSizeBytes,
		Reencode:      j.segmentation.Reencoded || !video.ShouldSkipTranscode(j.metadata, j.SourceFile).Skip,
		UploadBytes:   j.uploadBytes,
		UploadedBytes: uploadedBytes,
	})
}

func enrichmentFrom(md *clients.MovieMetadata) *progress.Enrichment {
	if md == nil {
		return nil
	}
	return &progress.Enrichment{
		Title:     md.Title,
		Year:      md.Year,
		Plot:      md.Plot,
		Genre:     md.Genre,
		Director:  md.Director,
		Actors:    md.Actors,
		PosterURL: md.PosterURL,
		IMDbID:    md.IMDbID,
	}
}
