package clients

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/livepeer/catalyst-ingest/log"
)

// RetryPolicy is a bounded exponential backoff without jitter: with
// MaxAttempts 3, BaseDelay 5s and Multiplier 2 the waits are 5s then 10s.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

var DefaultStorageRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   5 * time.Second,
	Multiplier:  2,
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// BackOff builds a fresh backoff.BackOff for one retried operation
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.MaxInterval = time.Duration(float64(p.BaseDelay) * pow(b.Multiplier, p.attempts()))
	b.MaxElapsedTime = 0 // bounded by attempts, not time
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts()-1)), ctx)
}

// Do calls op until it succeeds, returns a permanent error or runs out of
// attempts. It returns the number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, requestID, operation string, op func(attempt int) error) (int, error) {
	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			return op(attempt)
		},
		p.BackOff(ctx),
		func(err error, wait time.Duration) {
			log.LogError(requestID, "retrying "+operation, err, "attempt", attempt, "max_attempts", p.attempts(), "wait", wait)
		},
	)
	return attempt, err
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
