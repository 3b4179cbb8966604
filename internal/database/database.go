// Package database provides the SQLite-backed run history store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/joshsymonds/accesslens/pkg/logger"
)

// Run records one enrichment run: an extend-all pass or a custom report.
type Run struct {
	StartedAt   time.Time
	CompletedAt time.Time
	ID          string
	Kind        string
	Report      string
	RecordsIn   int
	RecordsOut  int
	APICalls    int
	Errors      int
}

// Run kinds.
const (
	RunKindExtend = "extend"
	RunKindCustom = "custom"
)

// DB wraps the SQLite connection for run history.
type DB struct {
	conn   *sql.DB
	logger logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	report TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP NOT NULL,
	records_in INTEGER NOT NULL DEFAULT 0,
	records_out INTEGER NOT NULL DEFAULT 0,
	api_calls INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

// New opens (creating if necessary) the run history database at path.
func New(path string, log logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &DB{conn: conn, logger: log}, nil
}

// SaveRun persists one run record.
func (d *DB) SaveRun(ctx context.Context, run Run) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO runs (id, kind, report, started_at, completed_at, records_in, records_out, api_calls, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Report, run.StartedAt, run.CompletedAt,
		run.RecordsIn, run.RecordsOut, run.APICalls, run.Errors,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	d.logger.Debug("Saved run", "run_id", run.ID, "kind", run.Kind, "report", run.Report)
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, kind, report, started_at, completed_at, records_in, records_out, api_calls, errors
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Kind, &run.Report, &run.StartedAt, &run.CompletedAt,
			&run.RecordsIn, &run.RecordsOut, &run.APICalls, &run.Errors); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}
