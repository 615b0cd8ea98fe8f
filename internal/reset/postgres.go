package reset

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mfields/crawlbench/internal/stats"
)

var validDatabaseName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// pgExecutor is the slice of pgxpool.Pool the reset needs; pgxmock
// satisfies it in tests.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresReset drops and recreates the crawler's database through an
// administrative connection to the server's maintenance database.
type PostgresReset struct {
	dbName  string
	logger  *zap.Logger
	connect func(ctx context.Context) (pgExecutor, error)
}

// NewPostgresReset builds a reset for dbName. Admin holds the connection
// parameters for the maintenance database (usually "postgres"), not for
// the database being dropped.
func NewPostgresReset(admin stats.PostgresConfig, dbName string, logger *zap.Logger) (*PostgresReset, error) {
	if !validDatabaseName.MatchString(dbName) {
		return nil, fmt.Errorf("invalid database name %q", dbName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresReset{
		dbName: dbName,
		logger: logger,
		connect: func(ctx context.Context) (pgExecutor, error) {
			pool, err := pgxpool.New(ctx, admin.DSN())
			if err != nil {
				return nil, err
			}
			return pool, nil
		},
	}, nil
}

// NewPostgresResetWithPool wires the reset to an existing pool, primarily
// for tests.
func NewPostgresResetWithPool(pool pgExecutor, dbName string, logger *zap.Logger) (*PostgresReset, error) {
	if !validDatabaseName.MatchString(dbName) {
		return nil, fmt.Errorf("invalid database name %q", dbName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresReset{
		dbName:  dbName,
		logger:  logger,
		connect: func(context.Context) (pgExecutor, error) { return pool, nil },
	}, nil
}

// Reset drops and recreates the database. Failures are logged as warnings
// and returned for visibility, but callers are expected to proceed: the
// crawler's own initialization tolerates pre-existing state.
func (r *PostgresReset) Reset(ctx context.Context) error {
	pool, err := r.connect(ctx)
	if err != nil {
		r.logger.Warn("postgres reset connect failed", zap.Error(err))
		return fmt.Errorf("connect admin: %w", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", r.dbName)); err != nil {
		r.logger.Warn("drop database failed", zap.String("database", r.dbName), zap.Error(err))
		return fmt.Errorf("drop database %s: %w", r.dbName, err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", r.dbName)); err != nil {
		r.logger.Warn("create database failed", zap.String("database", r.dbName), zap.Error(err))
		return fmt.Errorf("create database %s: %w", r.dbName, err)
	}

	r.logger.Info("postgres database reset", zap.String("database", r.dbName))
	return nil
}
