package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	ingesterrors "github.com/livepeer/catalyst-ingest/errors"
	"github.com/livepeer/catalyst-ingest/log"
	"github.com/livepeer/catalyst-ingest/metrics"
	"github.com/livepeer/catalyst-ingest/subprocess"
)

const (
	TransportCLI       = "cli"
	TransportPublisher = "publisher"
)

var ErrBlobNotFound = errors.New("blob not found on aggregator")

type UploadOptions struct {
	// Epochs to keep the blob for, the client default when 0
	Epochs int
}

// BlobStorer stores local files on the decentralized storage network
type BlobStorer interface {
	Upload(ctx context.Context, requestID, localPath string, opts UploadOptions) (BlobUpload, error)
}

// blobWriter performs a single store operation and returns the raw response
type blobWriter interface {
	name() string
	store(ctx context.Context, requestID, localPath string, epochs int) ([]byte, error)
}

type DStorageConfig struct {
	Transport     string
	CLIPath       string
	CLIConfig     string
	PublisherURL  *url.URL
	AggregatorURL *url.URL
	DefaultEpochs int
	// Timeout of each individual store or existence check call
	Timeout time.Duration
	Retry   RetryPolicy
	Runner  subprocess.Runner
}

type DStorageClient struct {
	writer        blobWriter
	aggregator    *url.URL
	httpClient    *retryablehttp.Client
	defaultEpochs int
	timeout       time.Duration
	retry         RetryPolicy
}

func NewDStorageClient(cfg DStorageConfig) (*DStorageClient, error) {
	if cfg.AggregatorURL == nil {
		return nil, fmt.Errorf("an aggregator URL is required to verify stored blobs")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultStorageRetryPolicy
	}
	if cfg.Runner == nil {
		cfg.Runner = subprocess.Exec{}
	}
	// a single retry authority: the RetryPolicy
	httpClient := newHTTPClient(0, cfg.Timeout)

	var writer blobWriter
	switch cfg.Transport {
	case TransportCLI, "":
		if cfg.CLIPath == "" {
			return nil, fmt.Errorf("storage CLI path is required for the %s transport", TransportCLI)
		}
		writer = &cliWriter{bin: cfg.CLIPath, configPath: cfg.CLIConfig, runner: cfg.Runner, timeout: cfg.Timeout}
	case TransportPublisher:
		if cfg.PublisherURL == nil {
			return nil, fmt.Errorf("publisher URL is required for the %s transport", TransportPublisher)
		}
		writer = &publisherWriter{base: cfg.PublisherURL, httpClient: httpClient, timeout: cfg.Timeout}
	default:
		return nil, fmt.Errorf("unknown storage transport %q", cfg.Transport)
	}

	return &DStorageClient{
		writer:        writer,
		aggregator:    cfg.AggregatorURL,
		httpClient:    httpClient,
		defaultEpochs: cfg.DefaultEpochs,
		timeout:       cfg.Timeout,
		retry:         cfg.Retry,
	}, nil
}

// Upload stores the file, retrying per the client's RetryPolicy. A result with
// zero cost is only trusted once the blob is confirmed on the read path.
func (c *DStorageClient) Upload(ctx context.Context, requestID, localPath string, opts UploadOptions) (BlobUpload, error) {
	epochs := opts.Epochs
	if epochs <= 0 {
		epochs = c.defaultEpochs
	}
	transport := c.writer.name()

	start := time.Now()
	var upload BlobUpload
	attempts, err := c.retry.Do(ctx, requestID, "store "+path.Base(localPath), func(attempt int) error {
		metrics.Metrics.Storage.UploadAttempts.WithLabelValues(transport).Inc()
		res, err := c.storeOnce(ctx, requestID, localPath, epochs)
		if err != nil {
			return err
		}
		upload = res
		return nil
	})
	metrics.Metrics.Storage.UploadDurationSec.WithLabelValues(transport, strconv.FormatBool(err == nil)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.Storage.UploadFailures.WithLabelValues(transport).Inc()
		return BlobUpload{}, &ingesterrors.StorageUploadError{Path: localPath, Attempts: attempts, Cause: err}
	}

	metrics.Metrics.Storage.CostUnits.Add(float64(upload.CostUnits))
	log.LogCtx(log.WithRequestID(ctx, requestID), "stored blob", "transport", transport, "path", localPath, "content_id", upload.ContentID, "cost", upload.CostUnits, "attempts", attempts, "epochs", epochs)
	return upload, nil
}

func (c *DStorageClient) storeOnce(ctx context.Context, requestID, localPath string, epochs int) (BlobUpload, error) {
	if _, err := os.Stat(localPath); err != nil {
		return BlobUpload{}, ingesterrors.Unretriable(err)
	}

	raw, err := c.writer.store(ctx, requestID, localPath, epochs)
	if err != nil {
		return BlobUpload{}, err
	}
	outcome, err := ParseStoreResponse(raw)
	if err != nil {
		return BlobUpload{}, err
	}
	upload, err := NormalizeStoreOutcome(outcome)
	if err != nil {
		return BlobUpload{}, err
	}

	if upload.CostUnits == 0 {
		exists, err := c.BlobExists(ctx, upload.ContentID)
		metrics.Metrics.Storage.ExistenceChecks.WithLabelValues(strconv.FormatBool(exists)).Inc()
		if err != nil {
			return BlobUpload{}, fmt.Errorf("existence check for %s failed: %w", upload.ContentID, err)
		}
		if !exists {
			return BlobUpload{}, fmt.Errorf("%s reported as %s: %w", upload.ContentID, outcome.Kind(), ErrBlobNotFound)
		}
	}
	return upload, nil
}

// BlobExists asks the aggregator whether the blob can be read back
func (c *DStorageClient) BlobExists(ctx context.Context, contentID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.aggregator.JoinPath("v1", "blobs", contentID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, fmt.Errorf("aggregator returned HTTP %d", resp.StatusCode)
	}
}

type cliWriter struct {
	bin        string
	configPath string
	runner     subprocess.Runner
	timeout    time.Duration
}

func (w *cliWriter) name() string { return TransportCLI }

func (w *cliWriter) store(ctx context.Context, requestID, localPath string, epochs int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var args []string
	if w.configPath != "" {
		args = append(args, "--config", w.configPath)
	}
	args = append(args, "store", "--json", "--epochs", strconv.Itoa(epochs), localPath)
	return w.runner.Run(ctx, requestID, w.bin, args...)
}

type publisherWriter struct {
	base       *url.URL
	httpClient *retryablehttp.Client
	timeout    time.Duration
}

func (w *publisherWriter) name() string { return TransportPublisher }

func (w *publisherWriter) store(ctx context.Context, requestID, localPath string, epochs int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	f, err := os.Open(localPath)
	if err != nil {
		return nil, ingesterrors.Unretriable(err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	u := w.base.JoinPath("v1", "blobs")
	q := u.Query()
	q.Set("epochs", strconv.Itoa(epochs))
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, u.String(), f)
	if err != nil {
		return nil, err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publisher request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read publisher response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("publisher returned HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}
