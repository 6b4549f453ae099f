package progress

import (
	"time"

	"github.com/livepeer/catalyst-ingest/video"
)

type Status string

const (
	StatusQueued           Status = "queued"
	StatusAnalyzing        Status = "analyzing"
	StatusTranscoding      Status = "transcoding"
	StatusUploadingStorage Status = "uploading_storage"
	StatusRegistering      Status = "registering"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Position of each non-failed status along the pipeline
var statusOrder = map[Status]int{
	StatusQueued:           0,
	StatusAnalyzing:        1,
	StatusTranscoding:      2,
	StatusUploadingStorage: 3,
	StatusRegistering:      4,
	StatusCompleted:        5,
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok || s == StatusFailed
}

// Record is what pollers see for a job
type Record struct {
	JobID                     string    `json:"jobId"`
	Status                    Status    `json:"status"`
	ProgressPercent           int       `json:"progressPercent"`
	CurrentStepDescription    string    `json:"currentStepDescription"`
	ErrorMessage              string    `json:"errorMessage,omitempty"`
	StartedAt                 time.Time `json:"startedAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
	FileSizeBytes             int64     `json:"fileSizeBytes"`
	VideoDurationSeconds      float64   `json:"videoDurationSeconds"`
	EstimatedSecondsRemaining int64     `json:"estimatedSecondsRemaining"`
	Result                    *Result   `json:"result,omitempty"`
}

// Result is attached to the record once the job has completed
type Result struct {
	JobID            string                `json:"jobId"`
	LedgerContentID  string                `json:"ledgerContentId"`
	Title            string                `json:"title"`
	BlobIDSet        video.StoredBlobIDSet `json:"blobIdSet"`
	DurationSeconds  float64               `json:"durationSeconds"`
	TotalStorageCost int64                 `json:"totalStorageCost"`
	TxReference      string                `json:"txReference"`
	Enrichment       *Enrichment           `json:"enrichment,omitempty"`
}

// Enrichment is the optional third party metadata found for the title
type Enrichment struct {
	Title     string `json:"title"`
	Year      string `json:"year,omitempty"`
	Plot      string `json:"plot,omitempty"`
	Genre     string `json:"genre,omitempty"`
	Director  string `json:"director,omitempty"`
	Actors    string `json:"actors,omitempty"`
	PosterURL string `json:"posterUrl,omitempty"`
	IMDbID    string `json:"imdbId,omitempty"`
}
