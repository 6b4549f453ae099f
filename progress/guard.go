package progress

import (
	"context"
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid job status transition")

// Guard sits in front of a Store and keeps every job's record moving forward:
//   - status only advances along the pipeline, or jumps to failed
//   - completed and failed are final
//   - percent and ETA never go backwards while the job is running
//   - failed forces percent to 0, completed forces it to 100
type Guard struct {
	Store
}

func NewGuard(store Store) *Guard {
	return &Guard{Store: store}
}

func (g *Guard) Set(ctx context.Context, jobID string, record Record) error {
	if !record.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, record.Status)
	}
	prev, err := g.Store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := checkTransition(prev, record); err != nil {
		return fmt.Errorf("job %s: %w", jobID, err)
	}
	return g.Store.Set(ctx, jobID, normalize(prev, record))
}

func checkTransition(prev *Record, next Record) error {
	if prev == nil {
		if next.Status != StatusQueued && next.Status != StatusFailed {
			return fmt.Errorf("%w: new job must start as %s, got %s", ErrInvalidTransition, StatusQueued, next.Status)
		}
		return nil
	}
	if prev.Status.IsTerminal() {
		return fmt.Errorf("%w: job already %s", ErrInvalidTransition, prev.Status)
	}
	if next.Status == StatusFailed {
		return nil
	}
	if statusOrder[next.Status] < statusOrder[prev.Status] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.Status, next.Status)
	}
	return nil
}

func normalize(prev *Record, next Record) Record {
	switch next.Status {
	case StatusFailed:
		next.ProgressPercent = 0
		next.EstimatedSecondsRemaining = 0
		return next
	case StatusCompleted:
		next.ProgressPercent = 100
		next.EstimatedSecondsRemaining = 0
		return next
	}

	next.ProgressPercent = clamp(next.ProgressPercent, 0, 99)
	if next.EstimatedSecondsRemaining < 0 {
		next.EstimatedSecondsRemaining = 0
	}
	if prev != nil {
		if next.ProgressPercent < prev.ProgressPercent {
			next.ProgressPercent = prev.ProgressPercent
		}
		if prev.Status != StatusQueued && next.EstimatedSecondsRemaining > prev.EstimatedSecondsRemaining {
			next.EstimatedSecondsRemaining = prev.EstimatedSecondsRemaining
		}
	}
	return next
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
