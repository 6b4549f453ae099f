package progress

import (
	"context"
	"sort"

	"github.com/livepeer/catalyst-ingest/cache"
)

// Store holds one Record per job. Only the goroutine running a job writes its
// record, any number of pollers may read it.
type Store interface {
	Set(ctx context.Context, jobID string, record Record) error
	// Get returns nil when the job is unknown
	Get(ctx context.Context, jobID string) (*Record, error)
	// ListActive returns the jobs that are neither completed nor failed
	ListActive(ctx context.Context) ([]Record, error)
	Clear(ctx context.Context, jobID string) error
}

// MemoryStore keeps records in process. A restart loses them.
type MemoryStore struct {
	records *cache.Cache[Record]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: cache.New[Record]()}
}

func (m *MemoryStore) Set(_ context.Context, jobID string, record Record) error {
	record.JobID = jobID
	m.records.Store(jobID, record)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, jobID string) (*Record, error) {
	record, ok := m.records.Lookup(jobID)
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]Record, error) {
	var active []Record
	for _, r := range m.records.Values() {
		if !r.Status.IsTerminal() {
			active = append(active, r)
		}
	}
	sortRecords(active)
	return active, nil
}

func (m *MemoryStore) Clear(_ context.Context, jobID string) error {
	m.records.Remove(jobID)
	return nil
}

// oldest first, job id as tie breaker
func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].JobID < records[j].JobID
		}
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
