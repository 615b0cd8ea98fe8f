package stats

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// SQLiteReader reads crawl metrics from the crawler's embedded SQLite
// database. Each Read opens a fresh connection and closes it before
// returning, so the reader never holds the file open between polls.
type SQLiteReader struct {
	Path string
}

// NewSQLiteReader returns a reader over the crawl database at path.
func NewSQLiteReader(path string) *SQLiteReader {
	return &SQLiteReader{Path: path}
}

// Read implements Reader. A missing database file yields ErrNoSnapshot so
// callers can tell "crawl not started" apart from "zero progress".
func (r *SQLiteReader) Read(ctx context.Context) (*Snapshot, error) {
	if _, err := os.Stat(r.Path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, r.Path)
	}

	db, err := sql.Open("sqlite", r.Path)
	if err != nil {
		return nil, fmt.Errorf("open crawl db: %w", err)
	}
	defer db.Close()

	snap, err := readSnapshot(ctx, sqliteQuerier{db})
	if err != nil {
		return nil, fmt.Errorf("read sqlite stats: %w", err)
	}
	return snap, nil
}

// sqliteQuerier adapts *sql.DB to the small query surface snapshot
// extraction needs, mirroring the pgx side so both backends share one
// aggregation routine.
type sqliteQuerier struct {
	db *sql.DB
}

func (q sqliteQuerier) queryValue(ctx context.Context, query string) (int64, error) {
	var v sql.NullInt64
	if err := q.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, err
	}
	return v.Int64, nil
}

func (q sqliteQuerier) queryStatusHistogram(ctx context.Context) (map[int64]int64, error) {
	rows, err := q.db.QueryContext(ctx, statusHistogramQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hist := make(map[int64]int64)
	for rows.Next() {
		var code, count int64
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		hist[code] = count
	}
	return hist, rows.Err()
}

func (q sqliteQuerier) queryFrontierHistogram(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, frontierHistogramQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hist := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		hist[status] = count
	}
	return hist, rows.Err()
}
