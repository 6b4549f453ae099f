package errors

import (
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// UnretriableError marks a failure that retrying cannot fix. It is also a
// backoff.PermanentError so that any retry loop stops on it straight away.
type UnretriableError struct{ error }

func Unretriable(err error) error {
	return UnretriableError{backoff.Permanent(err)}
}

func (e UnretriableError) Unwrap() error {
	return e.error
}

func IsUnretriable(err error) bool {
	return errors.As(err, &UnretriableError{})
}

// ValidationError means the source file was readable but doesn't meet the
// minimum requirements. It is reported to the caller as-is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid video: " + e.Reason
}

func NewValidationError(format string, args ...any) error {
	return Unretriable(&ValidationError{Reason: fmt.Sprintf(format, args...)})
}

// AnalysisError covers every failure to inspect the source file
type AnalysisError struct {
	Path  string
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("failed to analyze %s: %s", e.Path, e.Cause)
}

func (e *AnalysisError) Unwrap() error { return e.Cause }

type ThumbnailError struct {
	Path  string
	Cause error
}

func (e *ThumbnailError) Error() string {
	return fmt.Sprintf("failed to generate thumbnail for %s: %s", e.Path, e.Cause)
}

func (e *ThumbnailError) Unwrap() error { return e.Cause }

type TranscodeError struct {
	Path     string
	Reencode bool
	Cause    error
}

func (e *TranscodeError) Error() string {
	mode := "copy"
	if e.Reencode {
		mode = "transcode"
	}
	return fmt.Sprintf("failed to segment %s (%s): %s", e.Path, mode, e.Cause)
}

func (e *TranscodeError) Unwrap() error { return e.Cause }

// StorageUploadError is returned once every upload attempt for a file failed
type StorageUploadError struct {
	Path     string
	Attempts int
	Cause    error
}

func (e *StorageUploadError) Error() string {
	return fmt.Sprintf("failed to store %s after %d attempts: %s", e.Path, e.Attempts, e.Cause)
}

func (e *StorageUploadError) Unwrap() error { return e.Cause }

// BatchUploadError aggregates the segment uploads of one job that failed
type BatchUploadError struct {
	Failed     int
	Total      int
	FirstCause error
}

func (e *BatchUploadError) Error() string {
	return fmt.Sprintf("%d/%d segments failed to upload: %s", e.Failed, e.Total, e.FirstCause)
}

func (e *BatchUploadError) Unwrap() error { return e.FirstCause }

type RegistrationError struct {
	Cause error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("ledger registration failed: %s", e.Cause)
}

func (e *RegistrationError) Unwrap() error { return e.Cause }

type CatalogError struct {
	JobID string
	Cause error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("failed to write catalog record for job %s: %s", e.JobID, e.Cause)
}

func (e *CatalogError) Unwrap() error { return e.Cause }

// ErrNotFound is returned by lookups of unknown objects
var ErrNotFound = errors.New("not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
