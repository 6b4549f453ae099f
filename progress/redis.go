package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "ingest:job:"
	activeSetKey = "ingest:active"

	InterruptedMessage = "interrupted by restart"
)

// RedisStore keeps records in Redis so that they survive a restart. Records
// expire after ttl. One instance drives the jobs under a Redis database, see
// MarkInterrupted.
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
	}
}

func NewRedisStoreFromURL(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), ttl), nil
}

func (s *RedisStore) Set(ctx context.Context, jobID string, record Record) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	record.JobID = jobID
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	tx := s.rdb.TxPipeline()
	tx.Set(ctx, jobKey(jobID), payload, s.ttl)
	if record.Status.IsTerminal() {
		tx.SRem(ctx, activeSetKey, jobID)
	} else {
		tx.SAdd(ctx, activeSetKey, jobID)
	}
	_, err = tx.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record for job %s: %w", jobID, err)
	}
	return &record, nil
}

func (s *RedisStore) ListActive(ctx context.Context) ([]Record, error) {
	ids, err := s.rdb.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, err
	}
	var active []Record
	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if record == nil || record.Status.IsTerminal() {
			// expired or finished without the set being updated
			s.rdb.SRem(ctx, activeSetKey, id)
			continue
		}
		active = append(active, *record)
	}
	sortRecords(active)
	return active, nil
}

func (s *RedisStore) Clear(ctx context.Context, jobID string) error {
	tx := s.rdb.TxPipeline()
	tx.Del(ctx, jobKey(jobID))
	tx.SRem(ctx, activeSetKey, jobID)
	_, err := tx.Exec(ctx)
	return err
}

// MarkInterrupted fails every job still recorded as active. Called on startup,
// since jobs are only ever driven by the process that started them. A job
// still running elsewhere sees its record finalized and stops before
// registering.
func (s *RedisStore) MarkInterrupted(ctx context.Context, at time.Time) (int, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	for _, record := range active {
		record.Status = StatusFailed
		record.ProgressPercent = 0
		record.EstimatedSecondsRemaining = 0
		record.ErrorMessage = InterruptedMessage
		record.UpdatedAt = at
		if err := s.Set(ctx, record.JobID, record); err != nil {
			return 0, err
		}
	}
	return len(active), nil
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
