package progress

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Runs against a real server when INGEST_TEST_REDIS_URL is set
func newTestRedisStore(t *testing.T) *RedisStore {
	url := os.Getenv("INGEST_TEST_REDIS_URL")
	if url == "" {
		t.Skip("INGEST_TEST_REDIS_URL not set")
	}
	s, err := NewRedisStoreFromURL(url, time.Minute)
	require.NoError(t, err)
	return s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)
	id := uuid.NewString()
	t.Cleanup(func() { _ = s.Clear(ctx, id) })

	r, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Nil(t, r)

	require.NoError(t, s.Set(ctx, id, Record{Status: StatusTranscoding, ProgressPercent: 20}))
	r, err = s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, r.JobID)
	require.Equal(t, 20, r.ProgressPercent)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Contains(t, jobIDs(active), id)

	n, err := s.MarkInterrupted(ctx, time.Now())
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
	r, err = s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, r.Status)
	require.Equal(t, InterruptedMessage, r.ErrorMessage)

	active, err = s.ListActive(ctx)
	require.NoError(t, err)
	require.NotContains(t, jobIDs(active), id)
}

func TestNewRedisStoreFromURLRejectsBadURL(t *testing.T) {
	_, err := NewRedisStoreFromURL("http://nope", time.Minute)
	require.ErrorContains(t, err, "invalid redis URL")
}

func TestJobKey(t *testing.T) {
	require.Equal(t, "ingest:job:abc", jobKey("abc"))
}

func jobIDs(records []Record) []string {
	var ids []string
	for _, r := range records {
		ids = append(ids, r.JobID)
	}
	return ids
}
