package clients

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/livepeer/catalyst-ingest/errors"
	"github.com/stretchr/testify/require"
)

func TestDefaultStorageRetryPolicyIntervals(t *testing.T) {
	b := DefaultStorageRetryPolicy.BackOff(context.Background())
	require.Equal(t, 5*time.Second, b.NextBackOff())
	require.Equal(t, 10*time.Second, b.NextBackOff())
	require.Less(t, b.NextBackOff(), time.Duration(0), "only 3 attempts so no third wait")
}

func TestRetryPolicyStopsAfterMaxAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
	var calls int
	attempts, err := p.Do(context.Background(), "req", "test op", func(attempt int) error {
		calls++
		require.Equal(t, calls, attempt)
		return fmt.Errorf("failure %d", attempt)
	})
	require.Equal(t, 3, attempts)
	require.Equal(t, 3, calls)
	require.EqualError(t, err, "failure 3")
}

func TestRetryPolicySucceedsOnLaterAttempt(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
	attempts, err := p.Do(context.Background(), "req", "test op", func(attempt int) error {
		if attempt < 2 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestRetryPolicyStopsOnUnretriableErrors(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
	attempts, err := p.Do(context.Background(), "req", "test op", func(attempt int) error {
		return errors.Unretriable(fmt.Errorf("file is gone"))
	})
	require.Equal(t, 1, attempts)
	require.ErrorContains(t, err, "file is gone")
}

func TestRetryPolicyZeroAttemptsMeansOne(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Millisecond}
	attempts, err := p.Do(context.Background(), "req", "test op", func(attempt int) error {
		return fmt.Errorf("nope")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}
