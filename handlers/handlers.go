package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/livepeer/catalyst-ingest/clients"
	"github.com/livepeer/catalyst-ingest/log"
	"github.com/livepeer/catalyst-ingest/pipeline"
	"github.com/livepeer/catalyst-ingest/progress"
)

// IngestCoordinator is the part of the pipeline the API drives
type IngestCoordinator interface {
	StartIngestJob(p pipeline.IngestJobPayload) (string, error)
	GetJob(ctx context.Context, jobID string) (*progress.Record, error)
	ListActiveJobs(ctx context.Context) ([]progress.Record, error)
	ClearJob(ctx context.Context, jobID string) error
}

type IngestHandlersCollection struct {
	Coordinator IngestCoordinator
	// Uploaded and downloaded sources are written here before the job starts
	UploadDir       string
	MaxUploadBytes  int64
	DownloadTimeout time.Duration

	download func(ctx context.Context, url string) (io.ReadCloser, error)
}

func NewIngestHandlers(coordinator IngestCoordinator, uploadDir string, maxUploadBytes int64) *IngestHandlersCollection {
	return &IngestHandlersCollection{
		Coordinator:     coordinator,
		UploadDir:       uploadDir,
		MaxUploadBytes:  maxUploadBytes,
		DownloadTimeout: 10 * time.Minute,
		download:        clients.DownloadOSURL,
	}
}

func HasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	respBytes, err := json.Marshal(body)
	if err != nil {
		log.LogNoRequestID("failed to build HTTP response", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(respBytes); err != nil {
		log.LogNoRequestID("failed to write HTTP response", "err", err)
	}
}
