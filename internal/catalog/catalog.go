// Package catalog records build runs and the files they produced in
// PostgreSQL. It consumes the pipeline's stage events: run events maintain
// one build_runs row per run and per-bucket sort events upsert one
// store_files row per finished data file.
//
// It requires these tables (created by Migrate):
//
//	CREATE TABLE build_runs (
//	    run_id      TEXT PRIMARY KEY,
//	    status      TEXT NOT NULL,
//	    started_at  TIMESTAMPTZ NOT NULL,
//	    finished_at TIMESTAMPTZ,
//	    records     BIGINT NOT NULL DEFAULT 0,
//	    skipped     BIGINT NOT NULL DEFAULT 0,
//	    error       TEXT
//	);
//	CREATE TABLE store_files (
//	    run_id     TEXT NOT NULL REFERENCES build_runs (run_id),
//	    kind       TEXT NOT NULL,
//	    bucket     INT NOT NULL,
//	    data_path  TEXT NOT NULL,
//	    entries    BIGINT NOT NULL,
//	    duplicates INT NOT NULL,
//	    min_id     NUMERIC(20) NOT NULL,
//	    max_id     NUMERIC(20) NOT NULL,
//	    data_bytes BIGINT NOT NULL,
//	    sorted_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (run_id, kind, bucket)
//	);
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS build_runs (
    run_id      TEXT PRIMARY KEY,
    status      TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ,
    records     BIGINT NOT NULL DEFAULT 0,
    skipped     BIGINT NOT NULL DEFAULT 0,
    error       TEXT
);
CREATE TABLE IF NOT EXISTS store_files (
    run_id     TEXT NOT NULL REFERENCES build_runs (run_id),
    kind       TEXT NOT NULL,
    bucket     INT NOT NULL,
    data_path  TEXT NOT NULL,
    entries    BIGINT NOT NULL,
    duplicates INT NOT NULL,
    min_id     NUMERIC(20) NOT NULL,
    max_id     NUMERIC(20) NOT NULL,
    data_bytes BIGINT NOT NULL,
    sorted_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_id, kind, bucket)
);`

// Run is one row of build_runs.
type Run struct {
	RunID      string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Records    int64
	Skipped    int64
	Error      string
}

// File is one row of store_files.
type File struct {
	Kind       string
	Bucket     int
	DataPath   string
	Entries    int64
	Duplicates int
	MinID      uint64
	MaxID      uint64
	DataBytes  int64
	SortedAt   time.Time
}

// Catalog is a pipeline.EventSink backed by PostgreSQL.
type Catalog struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Catalog {
	return &Catalog{
		db:     db,
		logger: slog.Default().With("component", "catalog"),
	}
}

// Migrate creates the catalog tables if they do not exist.
func (c *Catalog) Migrate(ctx context.Context) error {
	if _, err := c.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating catalog tables: %w", err)
	}
	return nil
}

// Publish records the events the catalog keeps and ignores the rest.
func (c *Catalog) Publish(ctx context.Context, ev pipeline.StageEvent) error {
	switch {
	case ev.Stage == pipeline.StageRun && ev.Status == pipeline.StatusStarted:
		return c.startRun(ctx, ev)
	case ev.Stage == pipeline.StageRun:
		return c.finishRun(ctx, ev)
	case ev.Stage == pipeline.StageSort && ev.Bucket >= 0 && ev.Status == pipeline.StatusFinished:
		return c.recordFile(ctx, ev)
	default:
		return nil
	}
}

func (c *Catalog) startRun(ctx context.Context, ev pipeline.StageEvent) error {
	_, err := c.db.DB.ExecContext(ctx,
		`INSERT INTO build_runs (run_id, status, started_at) VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO UPDATE SET status = EXCLUDED.status, started_at = EXCLUDED.started_at,
		finished_at = NULL, error = NULL`,
		ev.RunID, ev.Status, ev.Time)
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

func (c *Catalog) finishRun(ctx context.Context, ev pipeline.StageEvent) error {
	_, err := c.db.DB.ExecContext(ctx,
		`UPDATE build_runs SET status = $2, finished_at = $3, records = $4, skipped = $5, error = $6
		WHERE run_id = $1`,
		ev.RunID, ev.Status, ev.Time, ev.Records, ev.Skipped, nullableString(ev.Error))
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	c.logger.Info("build run recorded", "run_id", ev.RunID, "status", ev.Status)
	return nil
}

// recordFile upserts the file row. Stages run on their own (the sort
// subcommand) have no run row yet, so one is created on demand.
func (c *Catalog) recordFile(ctx context.Context, ev pipeline.StageEvent) error {
	return c.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO build_runs (run_id, status, started_at) VALUES ($1, $2, $3)
			ON CONFLICT (run_id) DO NOTHING`,
			ev.RunID, pipeline.StatusStarted, ev.Time)
		if err != nil {
			return fmt.Errorf("ensuring run %s: %w", ev.RunID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO store_files (run_id, kind, bucket, data_path, entries, duplicates, min_id, max_id, data_bytes, sorted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (run_id, kind, bucket) DO UPDATE SET
			data_path = EXCLUDED.data_path, entries = EXCLUDED.entries, duplicates = EXCLUDED.duplicates,
			min_id = EXCLUDED.min_id, max_id = EXCLUDED.max_id, data_bytes = EXCLUDED.data_bytes,
			sorted_at = EXCLUDED.sorted_at`,
			ev.RunID, ev.Kind, ev.Bucket, ev.Path, ev.Records, ev.Duplicates,
			strconv.FormatUint(ev.MinID, 10), strconv.FormatUint(ev.MaxID, 10), ev.Bytes, ev.Time)
		if err != nil {
			return fmt.Errorf("recording %s bucket %d: %w", ev.Kind, ev.Bucket, err)
		}
		return nil
	})
}

// LatestRun returns the most recently started run, or nil when there is none.
func (c *Catalog) LatestRun(ctx context.Context) (*Run, error) {
	var r Run
	var finished sql.NullTime
	var errText sql.NullString
	err := c.db.DB.QueryRowContext(ctx,
		`SELECT run_id, status, started_at, finished_at, records, skipped, error
		FROM build_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&r.RunID, &r.Status, &r.StartedAt, &finished, &r.Records, &r.Skipped, &errText)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	r.Error = errText.String
	return &r, nil
}

// Files lists the files recorded for a run ordered by kind and bucket.
func (c *Catalog) Files(ctx context.Context, runID string) ([]File, error) {
	rows, err := c.db.DB.QueryContext(ctx,
		`SELECT kind, bucket, data_path, entries, duplicates, min_id::TEXT, max_id::TEXT, data_bytes, sorted_at
		FROM store_files WHERE run_id = $1 ORDER BY kind, bucket`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing files of run %s: %w", runID, err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		var minID, maxID string
		if err := rows.Scan(&f.Kind, &f.Bucket, &f.DataPath, &f.Entries, &f.Duplicates, &minID, &maxID, &f.DataBytes, &f.SortedAt); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		if f.MinID, err = strconv.ParseUint(minID, 10, 64); err != nil {
			return nil, fmt.Errorf("parsing min_id %q: %w", minID, err)
		}
		if f.MaxID, err = strconv.ParseUint(maxID, 10, 64); err != nil {
			return nil, fmt.Errorf("parsing max_id %q: %w", maxID, err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
