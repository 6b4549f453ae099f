package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/livepeer/catalyst-ingest/log"
)

// Asset is the catalog record of a completed job
type Asset struct {
	JobID              string
	LedgerContentID    string
	TxReference        string
	Title              string
	Description        string
	Genre              string
	DurationSeconds    float64
	Width              int64
	Height             int64
	Codec              string
	SizeBytes          int64
	BlobIDSet          json.RawMessage
	ThumbnailContentID string
	TotalStorageCost   int64
	// Third party metadata, nil when the lookup found nothing
	Enrichment json.RawMessage
	CreatedAt  time.Time
}

type Writer interface {
	WriteAsset(ctx context.Context, asset Asset) error
}

const createTable = `CREATE TABLE IF NOT EXISTS ingest_assets (
	job_id TEXT PRIMARY KEY,
	ledger_content_id TEXT NOT NULL,
	tx_reference TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	genre TEXT NOT NULL DEFAULT '',
	duration_seconds DOUBLE PRECISION NOT NULL,
	width BIGINT NOT NULL,
	height BIGINT NOT NULL,
	codec TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	blob_id_set JSONB NOT NULL,
	thumbnail_content_id TEXT NOT NULL,
	total_storage_cost BIGINT NOT NULL,
	enrichment JSONB,
	created_at TIMESTAMPTZ NOT NULL
)`

const upsertAsset = `INSERT INTO ingest_assets (
	job_id, ledger_content_id, tx_reference, title, description, genre,
	duration_seconds, width, height, codec, size_bytes,
	blob_id_set, thumbnail_content_id, total_storage_cost, enrichment, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (job_id) DO UPDATE SET
	ledger_content_id = EXCLUDED.ledger_content_id,
	tx_reference = EXCLUDED.tx_reference,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	genre = EXCLUDED.genre,
	duration_seconds = EXCLUDED.duration_seconds,
	width = EXCLUDED.width,
	height = EXCLUDED.height,
	codec = EXCLUDED.codec,
	size_bytes = EXCLUDED.size_bytes,
	blob_id_set = EXCLUDED.blob_id_set,
	thumbnail_content_id = EXCLUDED.thumbnail_content_id,
	total_storage_cost = EXCLUDED.total_storage_cost,
	enrichment = EXCLUDED.enrichment`

// PostgresWriter upserts assets keyed by job id
type PostgresWriter struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresWriter(db *sql.DB) *PostgresWriter {
	return &PostgresWriter{db: db, timeout: 10 * time.Second}
}

// OpenPostgres connects with lib/pq, which must be registered by the caller
func OpenPostgres(ctx context.Context, connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("error creating postgres client: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}
	return db, nil
}

func (w *PostgresWriter) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, createTable)
	return err
}

func (w *PostgresWriter) WriteAsset(ctx context.Context, a Asset) error {
	if a.JobID == "" {
		return fmt.Errorf("asset has no job id")
	}
	if len(a.BlobIDSet) == 0 {
		return fmt.Errorf("asset %s has no blob id set", a.JobID)
	}
	var enrichment sql.NullString
	if len(a.Enrichment) > 0 {
		enrichment = sql.NullString{String: string(a.Enrichment), Valid: true}
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, upsertAsset,
		a.JobID, a.LedgerContentID, a.TxReference, a.Title, a.Description, a.Genre,
		a.DurationSeconds, a.Width, a.Height, a.Codec, a.SizeBytes,
		string(a.BlobIDSet), a.ThumbnailContentID, a.TotalStorageCost, enrichment, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// LogWriter is used when no catalog database is configured
type LogWriter struct{}

func (LogWriter) WriteAsset(_ context.Context, a Asset) error {
	log.Log(a.JobID, "catalog database not configured, asset only logged",
		"ledger_content_id", a.LedgerContentID,
		"title", a.Title,
		"blob_id_set", string(a.BlobIDSet),
	)
	return nil
}
