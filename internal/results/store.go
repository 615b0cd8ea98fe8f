// Package results persists one row per completed benchmark run in a local
// SQLite database. The table is append-only: rows are never updated or
// deleted across campaigns.
package results

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mfields/crawlbench/internal/bench"
)

const createRunsTable = `CREATE TABLE IF NOT EXISTS runs(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT,
	backend TEXT,
	http_backend TEXT,
	js_enabled INTEGER,
	start_ts INTEGER,
	end_ts INTEGER,
	duration_s REAL,
	urls_total INTEGER,
	frontier_done INTEGER,
	frontier_queued INTEGER,
	frontier_pending INTEGER,
	pages_written INTEGER,
	status_200 INTEGER,
	status_non200 INTEGER,
	failures INTEGER,
	retries INTEGER,
	pages_per_sec REAL,
	notes TEXT
)`

// Columns added after the table first shipped. Applying them with a
// default keeps old database files readable; "duplicate column" just
// means the file is already current.
var columnMigrations = []string{
	`ALTER TABLE runs ADD COLUMN failures INTEGER DEFAULT 0`,
	`ALTER TABLE runs ADD COLUMN retries INTEGER DEFAULT 0`,
	`ALTER TABLE runs ADD COLUMN pages_per_sec REAL DEFAULT 0.0`,
}

// Store is the append-only run results database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the results database at path and brings its
// schema up to date.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create results dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if _, err := db.Exec(createRunsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	for _, stmt := range columnMigrations {
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			db.Close()
			return nil, fmt.Errorf("migrate runs table: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts one run row.
func (s *Store) Append(ctx context.Context, res bench.Result) error {
	const query = `INSERT INTO runs (
		label, backend, http_backend, js_enabled,
		start_ts, end_ts, duration_s,
		urls_total, frontier_done, frontier_queued, frontier_pending,
		pages_written, status_200, status_non200,
		failures, retries, pages_per_sec, notes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	jsEnabled := 0
	if res.JSEnabled {
		jsEnabled = 1
	}
	_, err := s.db.ExecContext(ctx, query,
		res.Label, string(res.Backend), res.HTTPBackend, jsEnabled,
		res.StartTS, res.EndTS, res.DurationS,
		res.URLsTotal, res.FrontierDone, res.FrontierQueued, res.FrontierPending,
		res.PagesWritten, res.Status200, res.StatusNon200,
		res.Failures, res.Retries, res.PagesPerSec, res.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert run %q: %w", res.Label, err)
	}
	return nil
}

// List returns all recorded runs in insertion order.
func (s *Store) List(ctx context.Context) ([]bench.Result, error) {
	const query = `SELECT
		label, backend, http_backend, js_enabled,
		start_ts, end_ts, duration_s,
		urls_total, frontier_done, frontier_queued, frontier_pending,
		pages_written, status_200, status_non200,
		COALESCE(failures, 0), COALESCE(retries, 0), COALESCE(pages_per_sec, 0), COALESCE(notes, '')
	FROM runs ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []bench.Result
	for rows.Next() {
		var res bench.Result
		var backend string
		var jsEnabled int
		err := rows.Scan(
			&res.Label, &backend, &res.HTTPBackend, &jsEnabled,
			&res.StartTS, &res.EndTS, &res.DurationS,
			&res.URLsTotal, &res.FrontierDone, &res.FrontierQueued, &res.FrontierPending,
			&res.PagesWritten, &res.Status200, &res.StatusNon200,
			&res.Failures, &res.Retries, &res.PagesPerSec, &res.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		res.Backend = bench.Backend(backend)
		res.JSEnabled = jsEnabled != 0
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Count reports the number of stored runs.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
