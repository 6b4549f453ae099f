package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSetClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	r, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, r)

	require.NoError(t, s.Set(ctx, "job-1", Record{Status: StatusQueued, FileSizeBytes: 42}))
	r, err = s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, "job-1", r.JobID)
	require.Equal(t, int64(42), r.FileSizeBytes)

	// callers get a copy
	r.Status = StatusFailed
	again, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, StatusQueued, again.Status)

	require.NoError(t, s.Clear(ctx, "job-1"))
	r, err = s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Nil(t, r)
}

func TestMemoryStoreListActive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Set(ctx, "b", Record{Status: StatusTranscoding, StartedAt: start.Add(time.Minute)}))
	require.NoError(t, s.Set(ctx, "a", Record{Status: StatusQueued, StartedAt: start}))
	require.NoError(t, s.Set(ctx, "c", Record{Status: StatusCompleted, StartedAt: start}))
	require.NoError(t, s.Set(ctx, "d", Record{Status: StatusFailed, StartedAt: start}))

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "a", active[0].JobID)
	require.Equal(t, "b", active[1].JobID)
}

func TestStatus(t *testing.T) {
	require.True(t, StatusCompleted.IsTerminal())
	require.True(t, StatusFailed.IsTerminal())
	require.False(t, StatusRegistering.IsTerminal())
	require.True(t, StatusFailed.Valid())
	require.False(t, Status("paused").Valid())
}
