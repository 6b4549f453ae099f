package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/catalyst-ingest/config"
	ingesterrors "github.com/livepeer/catalyst-ingest/errors"
	"github.com/livepeer/catalyst-ingest/log"
	"github.com/livepeer/catalyst-ingest/metrics"
	"github.com/livepeer/catalyst-ingest/pipeline"
	"github.com/livepeer/catalyst-ingest/progress"
	"github.com/xeipuuv/gojsonschema"
)

const (
	// Multipart bodies above this are spooled to disk by net/http
	multipartMemory = 32 << 20
	// JSON ingest requests only carry a URL and a few text fields
	maxJSONBodyBytes = 64 << 10
)

type IngestRequest struct {
	SourceURL      string `json:"source_url,omitempty"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Genre          string `json:"genre,omitempty"`
	Epochs         int    `json:"epochs,omitempty"`
	PaymentProofID string `json:"payment_proof_id,omitempty"`
}

type IngestResponse struct {
	JobID string `json:"job_id"`
}

type ActiveJobsResponse struct {
	Jobs []progress.Record `json:"jobs"`
}

type badRequestError struct {
	msg   string
	cause error
}

func (e *badRequestError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

// StartIngest accepts either a JSON body naming a source URL or a multipart
// upload with the file in the "file" field. The source is staged locally and
// the job runs in the background, the response only carries the job id.
func (d *IngestHandlersCollection) StartIngest() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		start := time.Now()
		status := http.StatusAccepted
		metrics.Metrics.IngestRequestCount.Inc()
		defer func() {
			metrics.Metrics.IngestRequestDurationSec.
				WithLabelValues(strconv.FormatBool(status < 300), strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
		}()

		var (
			payload pipeline.IngestJobPayload
			err     error
		)
		switch {
		case HasContentType(req, "application/json"):
			payload, err = d.payloadFromJSON(w, req)
		case HasContentType(req, "multipart/form-data"):
			payload, err = d.payloadFromUpload(w, req)
		default:
			status = http.StatusUnsupportedMediaType
			ingesterrors.WriteHTTPUnsupportedMediaType(w, "Requires application/json or multipart/form-data content type", nil)
			return
		}

		var badReq *badRequestError
		if errors.As(err, &badReq) {
			status = http.StatusBadRequest
			ingesterrors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		} else if err != nil {
			status = http.StatusInternalServerError
			ingesterrors.WriteHTTPInternalServerError(w, "Cannot stage source file", err)
			return
		}

		jobID, err := d.Coordinator.StartIngestJob(payload)
		if err != nil {
			_ = os.Remove(payload.SourceFile)
			status = http.StatusInternalServerError
			ingesterrors.WriteHTTPInternalServerError(w, "Cannot start ingest job", err)
			return
		}
		writeJSON(w, status, IngestResponse{JobID: jobID})
	}
}

func (d *IngestHandlersCollection) payloadFromJSON(w http.ResponseWriter, req *http.Request) (pipeline.IngestJobPayload, error) {
	var ingestReq IngestRequest
	payload, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxJSONBodyBytes))
	if err != nil {
		return pipeline.IngestJobPayload{}, &badRequestError{"cannot read payload", err}
	}
	result, err := inputSchemasCompiled["IngestURL"].Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return pipeline.IngestJobPayload{}, &badRequestError{"cannot validate payload", err}
	}
	if !result.Valid() {
		return pipeline.IngestJobPayload{}, &badRequestError{"body does not match schema", fmt.Errorf("%s", result.Errors())}
	}
	if err := json.Unmarshal(payload, &ingestReq); err != nil {
		return pipeline.IngestJobPayload{}, &badRequestError{"invalid JSON", err}
	}

	sourceURL, err := url.Parse(ingestReq.SourceURL)
	if err != nil || sourceURL.Scheme == "" {
		return pipeline.IngestJobPayload{}, &badRequestError{"source_url must be an absolute URL", err}
	}
	filename := path.Base(sourceURL.Path)

	ctx, cancel := context.WithTimeout(req.Context(), d.DownloadTimeout)
	defer cancel()
	body, err := d.download(ctx, ingestReq.SourceURL)
	if err != nil {
		return pipeline.IngestJobPayload{}, fmt.Errorf("failed to download source: %w", err)
	}
	defer body.Close()

	localPath, err := d.stage(body, filename)
	if err != nil {
		return pipeline.IngestJobPayload{}, err
	}
	log.LogNoRequestID("downloaded ingest source", "source_url", ingestReq.SourceURL, "path", localPath)
	return ingestReq.payload(localPath, filename), nil
}

func (d *IngestHandlersCollection) payloadFromUpload(w http.ResponseWriter, req *http.Request) (pipeline.IngestJobPayload, error) {
	if d.MaxUploadBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, d.MaxUploadBytes)
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		return pipeline.IngestJobPayload{}, &badRequestError{"cannot parse multipart form", err}
	}
	defer func() {
		if req.MultipartForm != nil {
			_ = req.MultipartForm.RemoveAll()
		}
	}()

	fields := map[string]interface{}{}
	for _, name := range []string{"title", "description", "genre", "payment_proof_id"} {
		if v := req.FormValue(name); v != "" {
			fields[name] = v
		}
	}
	if v := req.FormValue("epochs"); v != "" {
		epochs, err := strconv.Atoi(v)
		if err != nil {
			return pipeline.IngestJobPayload{}, &badRequestError{"epochs must be an integer", err}
		}
		fields["epochs"] = epochs
	}
	result, err := inputSchemasCompiled["IngestUpload"].Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return pipeline.IngestJobPayload{}, &badRequestError{"cannot validate form", err}
	}
	if !result.Valid() {
		return pipeline.IngestJobPayload{}, &badRequestError{"form does not match schema", fmt.Errorf("%s", result.Errors())}
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		return pipeline.IngestJobPayload{}, &badRequestError{"missing file", err}
	}
	defer file.Close()

	localPath, err := d.stage(file, header.Filename)
	if err != nil {
		return pipeline.IngestJobPayload{}, err
	}

	epochs, _ := fields["epochs"].(int)
	ingestReq := IngestRequest{
		Title:          req.FormValue("title"),
		Description:    req.FormValue("description"),
		Genre:          req.FormValue("genre"),
		Epochs:         epochs,
		PaymentProofID: req.FormValue("payment_proof_id"),
	}
	return ingestReq.payload(localPath, header.Filename), nil
}

// stage copies the source into the upload directory under a unique name
func (d *IngestHandlersCollection) stage(r io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(d.UploadDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	localPath := filepath.Join(d.UploadDir, config.RandomTrailer(8)+"_"+safeFilename(filename))
	f, err := os.OpenFile(localPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(localPath)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return "", &badRequestError{"file too large", err}
		}
		return "", fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	return localPath, nil
}

func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}

func (r IngestRequest) payload(localPath, originalFilename string) pipeline.IngestJobPayload {
	return pipeline.IngestJobPayload{
		SourceFile:       localPath,
		OriginalFilename: originalFilename,
		Title:            r.Title,
		Description:      r.Description,
		Genre:            r.Genre,
		Epochs:           r.Epochs,
		PaymentProofID:   r.PaymentProofID,
	}
}

func (d *IngestHandlersCollection) GetJob() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		record, err := d.Coordinator.GetJob(req.Context(), params.ByName("id"))
		if err != nil {
			ingesterrors.WriteHTTPInternalServerError(w, "Cannot read job", err)
			return
		}
		if record == nil {
			ingesterrors.WriteHTTPNotFound(w, "Job not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func (d *IngestHandlersCollection) ListActiveJobs() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		records, err := d.Coordinator.ListActiveJobs(req.Context())
		if err != nil {
			ingesterrors.WriteHTTPInternalServerError(w, "Cannot list jobs", err)
			return
		}
		if records == nil {
			records = []progress.Record{}
		}
		writeJSON(w, http.StatusOK, ActiveJobsResponse{Jobs: records})
	}
}

func (d *IngestHandlersCollection) ClearJob() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		err := d.Coordinator.ClearJob(req.Context(), params.ByName("id"))
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case ingesterrors.IsNotFound(err):
			ingesterrors.WriteHTTPNotFound(w, "Job not found", nil)
		case errors.Is(err, pipeline.ErrJobActive):
			ingesterrors.WriteHTTPConflict(w, "Job is still running", err)
		default:
			ingesterrors.WriteHTTPInternalServerError(w, "Cannot clear job", err)
		}
	}
}
