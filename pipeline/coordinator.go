package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/livepeer/catalyst-ingest/catalog"
	"github.com/livepeer/catalyst-ingest/clients"
	"github.com/livepeer/catalyst-ingest/config"
	ingesterrors "github.com/livepeer/catalyst-ingest/errors"
	"github.com/livepeer/catalyst-ingest/log"
	"github.com/livepeer/catalyst-ingest/metrics"
	"github.com/livepeer/catalyst-ingest/progress"
	"github.com/livepeer/catalyst-ingest/video"
)

var ErrJobActive = errors.New("job is still running")

// ErrJobFinalized aborts a job whose record was failed or completed by someone
// else, e.g. an instance marking it interrupted on startup.
var ErrJobFinalized = errors.New("job record was finalized outside the running job")

// Transcoder produces the thumbnail and segments of a source file
type Transcoder interface {
	GenerateThumbnail(ctx context.Context, requestID, sourcePath string, md video.VideoMetadata, workDir string) (string, error)
	GenerateSegments(ctx context.Context, req video.SegmentRequest) (video.SegmentationResult, error)
}

// Collaborators are the services a job talks to. Metadata and Archiver are
// optional.
type Collaborators struct {
	Prober   video.Prober
	Engine   Transcoder
	Storage  clients.BlobStorer
	Ledger   clients.LedgerRegistrar
	Metadata clients.MetadataLookup
	Catalog  catalog.Writer
	Archiver clients.ManifestArchiver
	Store    progress.Store
}

type Options struct {
	WorkDir           string
	KeepLocalFiles    bool
	UploadConcurrency int
	DefaultEpochs     int
	// Timeout of the best-effort metadata lookup and archive calls
	EnrichmentTimeout time.Duration
}

// Coordinator runs ingest jobs. It is called from the API handlers and never
// blocks on a job, each one runs in its own goroutine.
type Coordinator struct {
	Collaborators
	opts     Options
	store    *progress.Guard
	clock    clock.Clock
	inFlight int64
}

func NewCoordinator(opts Options, c Collaborators) (*Coordinator, error) {
	if c.Prober == nil || c.Engine == nil || c.Storage == nil || c.Ledger == nil {
		return nil, fmt.Errorf("prober, engine, storage and ledger are required")
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = 4
	}
	if opts.DefaultEpochs <= 0 {
		opts.DefaultEpochs = config.DefaultEpochs
	}
	if opts.EnrichmentTimeout <= 0 {
		opts.EnrichmentTimeout = 10 * time.Second
	}
	if c.Catalog == nil {
		c.Catalog = catalog.LogWriter{}
	}
	if c.Store == nil {
		c.Store = progress.NewMemoryStore()
	}
	return &Coordinator{
		Collaborators: c,
		opts:          opts,
		store:         progress.NewGuard(c.Store),
		clock:         config.Clock,
	}, nil
}

// StartIngestJob records the job as queued and starts it in the background.
// The returned job id can be polled straight away.
func (c *Coordinator) StartIngestJob(p IngestJobPayload) (string, error) {
	job, err := c.newJob(p)
	if err != nil {
		return "", err
	}
	c.runJobAsync(job)
	return job.JobID, nil
}

func (c *Coordinator) newJob(p IngestJobPayload) (*JobInfo, error) {
	if p.SourceFile == "" {
		return nil, fmt.Errorf("source file is required")
	}
	if p.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if p.OriginalFilename == "" {
		p.OriginalFilename = filepath.Base(p.SourceFile)
	}
	if p.Epochs <= 0 {
		p.Epochs = c.opts.DefaultEpochs
	}

	jobID := uuid.NewString()
	now := c.clock.Now().UTC()
	job := &JobInfo{
		IngestJobPayload: p,
		JobID:            jobID,
		WorkDir:          filepath.Join(c.opts.WorkDir, config.JobDirPrefix+jobID),
		StartedAt:        now,
		result:           make(chan bool, 1),
	}
	job.record = progress.Record{
		JobID:                  jobID,
		Status:                 progress.StatusQueued,
		CurrentStepDescription: "Queued",
		StartedAt:              now,
		UpdatedAt:              now,
	}
	if info, err := os.Stat(p.SourceFile); err == nil {
		job.record.FileSizeBytes = info.Size()
	}
	job.record.EstimatedSecondsRemaining = job.eta(progress.StatusQueued, 0)

	log.AddContext(jobID, "source_file", p.SourceFile, "title", p.Title)
	if err := c.store.Set(context.Background(), jobID, job.record); err != nil {
		return nil, fmt.Errorf("failed to record job: %w", err)
	}
	log.Log(jobID, "queued ingest job")
	return job, nil
}

// runJobAsync starts the job in a background goroutine, turning panics into
// a failed job.
func (c *Coordinator) runJobAsync(job *JobInfo) {
	atomic.AddInt64(&c.inFlight, 1)
	metrics.Metrics.JobsInFlight.Inc()
	// nolint:errcheck
	go recovered(func() (t bool, e error) {
		defer func() {
			atomic.AddInt64(&c.inFlight, -1)
			metrics.Metrics.JobsInFlight.Dec()
		}()
		ctx := log.WithRequestID(context.Background(), job.JobID)
		_, err := recovered(func() (bool, error) {
			return true, c.runStages(ctx, job)
		})
		c.finishJob(ctx, job, err)
		return
	})
}

func (c *Coordinator) runStages(ctx context.Context, job *JobInfo) error {
	if err := c.analyze(ctx, job); err != nil {
		return err
	}
	if err := c.transcode(ctx, job); err != nil {
		return err
	}
	if err := c.uploadAll(ctx, job); err != nil {
		return err
	}
	return c.register(ctx, job)
}

func (c *Coordinator) analyze(ctx context.Context, job *JobInfo) (err error) {
	if err := c.setProgress(ctx, job, progress.StatusAnalyzing, 2, "Analyzing video"); err != nil {
		return err
	}
	defer c.timeStage("analyzing", c.clock.Now(), &err)

	md, err := c.Prober.ProbeFile(ctx, job.JobID, job.SourceFile)
	if err != nil {
		return err
	}
	if err := md.Validate(); err != nil {
		return err
	}
	job.metadata = md
	job.record.VideoDurationSeconds = md.Duration
	if job.record.FileSizeBytes == 0 {
		job.record.FileSizeBytes = md.SizeBytes
	}
	return c.setProgress(ctx, job, progress.StatusAnalyzing, 8, fmt.Sprintf("Analyzed %s %s video, %.1fs", md.Resolution(), md.Codec, md.Duration))
}

func (c *Coordinator) transcode(ctx context.Context, job *JobInfo) (err error) {
	if err := c.setProgress(ctx, job, progress.StatusTranscoding, 10, "Generating thumbnail"); err != nil {
		return err
	}
	defer c.timeStage("transcoding", c.clock.Now(), &err)

	if err := os.MkdirAll(job.WorkDir, 0700); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	thumb, err := c.Engine.GenerateThumbnail(ctx, job.JobID, job.SourceFile, job.metadata, job.WorkDir)
	if err != nil {
		return err
	}
	job.thumbnail = thumb

	step := "Transcoding to 720p and segmenting"
	if decision := video.ShouldSkipTranscode(job.metadata, job.SourceFile); decision.Skip {
		step = "Segmenting video"
	}
	if err := c.setProgress(ctx, job, progress.StatusTranscoding, 15, step); err != nil {
		return err
	}

	md := job.metadata
	res, err := c.Engine.GenerateSegments(ctx, video.SegmentRequest{
		RequestID:  job.JobID,
		SourcePath: job.SourceFile,
		WorkDir:    job.WorkDir,
		Metadata:   &md,
	})
	if err != nil {
		return err
	}
	job.segmentation = res
	metrics.Metrics.SegmentsPerJob.Observe(float64(len(res.Segments)))
	return c.setProgress(ctx, job, progress.StatusTranscoding, 38, fmt.Sprintf("Produced %d segments", len(res.Segments)))
}

func (c *Coordinator) register(ctx context.Context, job *JobInfo) (err error) {
	if err := c.setProgress(ctx, job, progress.StatusRegistering, 88, "Registering on the ledger"); err != nil {
		return err
	}
	defer c.timeStage("registering", c.clock.Now(), &err)

	blobIDSet, err := video.MarshalBlobIDSet(job.blobIDSet)
	if err != nil {
		return err
	}

	receipt, err := c.Ledger.RegisterContent(ctx, job.JobID, clients.LedgerRegistration{
		JobID:              job.JobID,
		Title:              job.Title,
		Description:        job.Description,
		Genre:              job.Genre,
		DurationSeconds:    job.blobIDSet.TotalDuration(),
		BlobIDSet:          string(blobIDSet),
		ThumbnailContentID: job.blobIDSet.ThumbnailContentID,
		PaymentProofID:     job.PaymentProofID,
	})
	if err != nil {
		return &ingesterrors.RegistrationError{Cause: err}
	}
	job.receipt = receipt

	if err := c.setProgress(ctx, job, progress.StatusRegistering, 92, "Looking up title metadata"); err != nil {
		return err
	}
	job.enrichment = c.lookupMetadata(ctx, job)

	if err := c.setProgress(ctx, job, progress.StatusRegistering, 95, "Saving to catalog"); err != nil {
		return err
	}
	asset := catalog.Asset{
		JobID:              job.JobID,
		LedgerContentID:    receipt.LedgerContentID,
		TxReference:        receipt.TxReference,
		Title:              job.Title,
		Description:        job.Description,
		Genre:              job.Genre,
		DurationSeconds:    job.blobIDSet.TotalDuration(),
		Width:              job.metadata.Width,
		Height:             job.metadata.Height,
		Codec:              job.metadata.Codec,
		SizeBytes:          job.record.FileSizeBytes,
		BlobIDSet:          blobIDSet,
		ThumbnailContentID: job.blobIDSet.ThumbnailContentID,
		TotalStorageCost:   job.storageCost,
		CreatedAt:          c.clock.Now().UTC(),
	}
	if e := enrichmentFrom(job.enrichment); e != nil {
		if b, err := json.Marshal(e); err == nil {
			asset.Enrichment = b
		}
	}
	if err := c.Catalog.WriteAsset(ctx, asset); err != nil {
		metrics.Metrics.CatalogWrites.WithLabelValues("false").Inc()
		return &ingesterrors.CatalogError{JobID: job.JobID, Cause: err}
	}
	metrics.Metrics.CatalogWrites.WithLabelValues("true").Inc()

	c.archive(ctx, job, blobIDSet)
	return nil
}

// lookupMetadata never fails the job
func (c *Coordinator) lookupMetadata(ctx context.Context, job *JobInfo) *clients.MovieMetadata {
	if c.Metadata == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.EnrichmentTimeout)
	defer cancel()
	md, err := c.Metadata.SearchByFilename(ctx, job.OriginalFilename)
	if err != nil {
		log.LogCtxError(ctx, "metadata lookup failed, continuing without it", err)
		return nil
	}
	if md == nil {
		log.LogCtx(ctx, "no metadata found", "filename", job.OriginalFilename)
	}
	return md
}

func (c *Coordinator) archive(ctx context.Context, job *JobInfo, blobIDSet []byte) {
	if c.Archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.EnrichmentTimeout)
	defer cancel()
	if err := c.Archiver.Archive(ctx, job.JobID, job.JobID, blobIDSet); err != nil {
		log.LogCtxError(ctx, "failed to archive blob id set", err)
	}
}

func (c *Coordinator) finishJob(ctx context.Context, job *JobInfo, err error) {
	defer close(job.result)
	stage := string(job.record.Status)
	c.cleanup(ctx, job)

	if err != nil {
		job.record.ErrorMessage = err.Error()
		if perr := c.setProgress(ctx, job, progress.StatusFailed, 0, "Failed"); perr != nil {
			log.LogCtxError(ctx, "failed job was already finalized", perr)
		}
		log.LogCtxError(ctx, "ingest job failed", err, "stage", stage, "unretriable", ingesterrors.IsUnretriable(err))
		metrics.Metrics.JobResults.WithLabelValues(string(progress.StatusFailed), stage).Inc()
		job.result <- false
		log.Forget(job.JobID)
		return
	}

	job.record.Result = &progress.Result{
		JobID:            job.JobID,
		LedgerContentID:  job.receipt.LedgerContentID,
		Title:            job.Title,
		BlobIDSet:        job.blobIDSet,
		DurationSeconds:  job.blobIDSet.TotalDuration(),
		TotalStorageCost: job.storageCost,
		TxReference:      job.receipt.TxReference,
		Enrichment:       enrichmentFrom(job.enrichment),
	}
	if perr := c.setProgress(ctx, job, progress.StatusCompleted, 100, "Completed"); perr != nil {
		log.LogCtxError(ctx, "completed job was already finalized", perr)
	}
	log.LogCtx(ctx, "ingest job completed", "ledger_content_id", job.receipt.LedgerContentID, "segments", len(job.blobIDSet.Segments), "cost", job.storageCost, "duration", c.clock.Since(job.StartedAt))
	metrics.Metrics.JobResults.WithLabelValues(string(progress.StatusCompleted), stage).Inc()
	job.result <- true
	log.Forget(job.JobID)
}

// cleanup removes the uploaded source and the working directory. Failures
// are only logged.
func (c *Coordinator) cleanup(ctx context.Context, job *JobInfo) {
	if c.opts.KeepLocalFiles {
		log.LogCtx(ctx, "keeping local files", "source_file", job.SourceFile, "work_dir", job.WorkDir)
		return
	}
	if err := os.RemoveAll(job.WorkDir); err != nil {
		log.LogCtxError(ctx, "failed to remove working directory", err, "work_dir", job.WorkDir)
	}
	if err := os.Remove(job.SourceFile); err != nil && !os.IsNotExist(err) {
		log.LogCtxError(ctx, "failed to remove source file", err, "source_file", job.SourceFile)
	}
}

// setProgress is the only place job records are written. Store failures
// are logged, a job never fails because its progress couldn't be recorded.
// The one error returned is ErrJobFinalized, the job must stop then.
func (c *Coordinator) setProgress(ctx context.Context, job *JobInfo, status progress.Status, percent int, step string) error {
	return c.setProgressETA(ctx, job, status, percent, step, job.eta(status, 0))
}

func (c *Coordinator) setProgressETA(ctx context.Context, job *JobInfo, status progress.Status, percent int, step string, eta int64) error {
	job.record.Status = status
	job.record.ProgressPercent = percent
	job.record.CurrentStepDescription = step
	job.record.EstimatedSecondsRemaining = eta
	job.record.UpdatedAt = c.clock.Now().UTC()
	err := c.store.Set(ctx, job.JobID, job.record)
	if err == nil {
		return nil
	}
	if errors.Is(err, progress.ErrInvalidTransition) {
		if stored, gerr := c.store.Get(ctx, job.JobID); gerr == nil && stored != nil && stored.Status.IsTerminal() {
			return fmt.Errorf("%w: %s (%s)", ErrJobFinalized, stored.Status, stored.ErrorMessage)
		}
	}
	log.LogCtxError(ctx, "failed to update job progress", err, "status", status)
	return nil
}

func (c *Coordinator) timeStage(stage string, start time.Time, err *error) {
	metrics.Metrics.StageDurationSec.WithLabelValues(stage, strconv.FormatBool(*err == nil)).Observe(c.clock.Since(start).Seconds())
}

func (c *Coordinator) GetJob(ctx context.Context, jobID string) (*progress.Record, error) {
	return c.store.Get(ctx, jobID)
}

func (c *Coordinator) ListActiveJobs(ctx context.Context) ([]progress.Record, error) {
	return c.store.ListActive(ctx)
}

// ClearJob forgets a finished job. Running jobs can't be cleared.
func (c *Coordinator) ClearJob(ctx context.Context, jobID string) error {
	r, err := c.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if r == nil {
		return ingesterrors.ErrNotFound
	}
	if !r.Status.IsTerminal() {
		return ErrJobActive
	}
	return c.store.Clear(ctx, jobID)
}

func (c *Coordinator) InFlightJobs() int {
	return int(atomic.LoadInt64(&c.inFlight))
}

func recovered[T any](f func() (T, error)) (t T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in pipeline background goroutine, recovering", "err", rec)
			err = fmt.Errorf("panic in pipeline: %v", rec)
		}
	}()
	return f()
}
