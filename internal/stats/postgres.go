package stats

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var validSchemaName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig holds the connection parameters for the crawler's
// client-server backend.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// DSN renders the config as a pgx connection string.
func (c PostgresConfig) DSN() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, port, c.Database)
}

// pgQuerier is the subset of pgxpool.Pool the reader needs; pgxmock
// satisfies it in tests.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresReader reads crawl metrics from the crawler's Postgres backend.
// The crawler isolates each website in its own schema, named by the same
// derivation the SQLite files use.
type PostgresReader struct {
	schema  string
	logger  *zap.Logger
	connect func(ctx context.Context) (pgQuerier, error)
}

// NewPostgresReader builds a reader that connects with cfg and scopes all
// queries to the given schema.
func NewPostgresReader(cfg PostgresConfig, schema string, logger *zap.Logger) (*PostgresReader, error) {
	if !validSchemaName.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema name %q", schema)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresReader{
		schema: schema,
		logger: logger,
		connect: func(ctx context.Context) (pgQuerier, error) {
			pool, err := pgxpool.New(ctx, cfg.DSN())
			if err != nil {
				return nil, err
			}
			return pool, nil
		},
	}, nil
}

// NewPostgresReaderWithPool wires the reader to an existing pool, primarily
// for tests.
func NewPostgresReaderWithPool(pool pgQuerier, schema string, logger *zap.Logger) (*PostgresReader, error) {
	if !validSchemaName.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema name %q", schema)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresReader{
		schema:  schema,
		logger:  logger,
		connect: func(context.Context) (pgQuerier, error) { return pool, nil },
	}, nil
}

// Read implements Reader. Connection and query errors are logged and
// collapsed into ErrNoSnapshot; storage-layer failures must never escape
// into the run pipeline.
func (r *PostgresReader) Read(ctx context.Context) (*Snapshot, error) {
	pool, err := r.connect(ctx)
	if err != nil {
		r.logger.Warn("postgres stats connect failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", r.schema)); err != nil {
		r.logger.Warn("postgres stats set search_path failed",
			zap.String("schema", r.schema), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}

	snap, err := readSnapshot(ctx, pgPoolQuerier{pool})
	if err != nil {
		r.logger.Warn("postgres stats query failed",
			zap.String("schema", r.schema), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	return snap, nil
}

type pgPoolQuerier struct {
	pool pgQuerier
}

func (q pgPoolQuerier) queryValue(ctx context.Context, query string) (int64, error) {
	var v int64
	if err := q.pool.QueryRow(ctx, query).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (q pgPoolQuerier) queryStatusHistogram(ctx context.Context) (map[int64]int64, error) {
	rows, err := q.pool.Query(ctx, statusHistogramQuery)
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

func (q pgPoolQuerier) queryFrontierHistogram(ctx context.Context) (map[string]int64, error) {
	rows, err := q.pool.Query(ctx, frontierHistogramQuery)
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
