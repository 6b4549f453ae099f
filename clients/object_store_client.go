package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/livepeer/catalyst-ingest/log"
	"github.com/livepeer/go-tools/drivers"
)

func DownloadOSURL(ctx context.Context, osURL string) (io.ReadCloser, error) {
	storageDriver, err := drivers.ParseOSURL(osURL, true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OS URL %q: %s", log.RedactURL(osURL), err)
	}

	fileInfoReader, err := storageDriver.NewSession("").ReadData(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read from OS URL %q: %s", log.RedactURL(osURL), err)
	}

	return fileInfoReader.Body, nil
}

func UploadToOSURL(ctx context.Context, osURL, filename string, data io.Reader, timeout time.Duration) error {
	storageDriver, err := drivers.ParseOSURL(osURL, true)
	if err != nil {
		return fmt.Errorf("failed to parse OS URL %q: %s", log.RedactURL(osURL), err)
	}

	_, err = storageDriver.NewSession("").SaveData(ctx, filename, data, nil, timeout)
	if err != nil {
		return fmt.Errorf("failed to write file %q to OS URL %q: %s", filename, log.RedactURL(osURL), err)
	}

	return nil
}

// ManifestArchiver keeps a copy of each job's blob id set outside the catalog
type ManifestArchiver interface {
	Archive(ctx context.Context, requestID, jobID string, blobIDSet []byte) error
}

// OSArchiver writes blob id sets to any object store go-tools understands
// (s3+https://, gs://, local paths...) as <jobID>.json
type OSArchiver struct {
	BaseURL string
	Timeout time.Duration
}

func NewOSArchiver(baseURL string) *OSArchiver {
	return &OSArchiver{BaseURL: baseURL, Timeout: 30 * time.Second}
}

func (a *OSArchiver) Archive(ctx context.Context, requestID, jobID string, blobIDSet []byte) error {
	if err := UploadToOSURL(ctx, a.BaseURL, archiveName(jobID), bytes.NewReader(blobIDSet), a.Timeout); err != nil {
		return err
	}
	log.Log(requestID, "archived blob id set", "url", log.RedactURL(a.location(jobID)))
	return nil
}

func (a *OSArchiver) location(jobID string) string {
	return strings.TrimSuffix(a.BaseURL, "/") + "/" + archiveName(jobID)
}

func archiveName(jobID string) string {
	return jobID + ".json"
}
