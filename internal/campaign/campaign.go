// Package campaign drives the fixed sequence of benchmark configurations,
// persisting each result as soon as its run completes.
package campaign

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mfields/crawlbench/internal/bench"
	"github.com/mfields/crawlbench/internal/config"
	"github.com/mfields/crawlbench/internal/reset"
	"github.com/mfields/crawlbench/internal/results"
	"github.com/mfields/crawlbench/internal/runner"
	"github.com/mfields/crawlbench/internal/sitename"
)

// Delays the original harness observed around destructive resets so the
// just-exited crawler releases its storage first.
const (
	preResetDelay  = 2 * time.Second
	postResetDelay = 3 * time.Second
)

// Configurations returns the fixed benchmark sequence. Order matters: the
// campaign resets only the storage the next configuration uses.
func Configurations() []bench.TestConfig {
	return []bench.TestConfig{
		{Label: "curl_cffi_sqlite", Backend: bench.BackendSQLite, HTTPBackend: "curl"},
		{Label: "default_http_sqlite", Backend: bench.BackendSQLite, HTTPBackend: "auto"},
		{Label: "js_rendering_sqlite", Backend: bench.BackendSQLite, HTTPBackend: "auto", JSEnabled: true},
		{Label: "postgresql_backend", Backend: bench.BackendPostgres, HTTPBackend: "auto"},
	}
}

// executor runs one benchmark iteration.
type executor interface {
	Execute(ctx context.Context, tc bench.TestConfig) (*bench.Result, error)
}

// Campaign executes the configuration sequence against one target URL.
type Campaign struct {
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer

	exec        executor
	sqliteReset func(dataDir, site string) []reset.FileResult
	pgReset     func(ctx context.Context) error

	// Settle pauses around resets; shortened in tests.
	preReset  time.Duration
	postReset time.Duration
}

// New assembles a Campaign from the loaded configuration.
func New(cfg config.Config, logger *zap.Logger) *Campaign {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Campaign{
		cfg:       cfg,
		logger:    logger,
		out:       os.Stdout,
		preReset:  preResetDelay,
		postReset: postResetDelay,
	}
	c.exec = runner.New(runner.Config{
		CrawlerCommand:     cfg.CrawlerCommand,
		TargetURL:          cfg.TargetURL,
		DataDir:            cfg.DataDir,
		Postgres:           cfg.PostgresStats(),
		SettleDelay:        cfg.SettleDelay,
		MonitorStopTimeout: cfg.MonitorStopTimeout,
		PollInterval:       cfg.PollInterval,
		ReportInterval:     cfg.ReportInterval,
		Logger:             logger,
	})
	c.sqliteReset = func(dataDir, site string) []reset.FileResult {
		return reset.SQLite(dataDir, site, logger)
	}
	c.pgReset = func(ctx context.Context) error {
		pr, err := reset.NewPostgresReset(cfg.PostgresAdmin(), cfg.Postgres.Database, logger)
		if err != nil {
			return err
		}
		return pr.Reset(ctx)
	}
	return c
}

// Run executes the whole campaign. Only a results-store initialization
// failure is fatal; every per-iteration failure is logged and skipped.
func (c *Campaign) Run(ctx context.Context) error {
	store, err := results.Open(c.cfg.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	site, err := sitename.Derive(c.cfg.TargetURL)
	if err != nil {
		return err
	}

	campaignID := uuid.NewString()
	c.logger.Info("starting campaign",
		zap.String("campaign_id", campaignID),
		zap.String("target_url", c.cfg.TargetURL),
		zap.String("site", site))

	c.initialCleanup(ctx, site)

	configs := Configurations()
	completed := make([]bench.Result, 0, len(configs))
	for i, tc := range configs {
		res, err := c.exec.Execute(ctx, tc)
		if err != nil {
			c.logger.Error("iteration failed; skipping",
				zap.String("label", tc.Label), zap.Error(err))
		} else {
			if err := store.Append(ctx, *res); err != nil {
				c.logger.Error("could not persist result",
					zap.String("label", tc.Label), zap.Error(err))
			} else {
				c.logger.Info("result saved", zap.String("label", tc.Label))
			}
			completed = append(completed, *res)
		}

		if i+1 < len(configs) {
			c.resetForNext(ctx, site, configs[i+1])
		}
	}

	writeSummary(c.out, completed)
	c.logger.Info("campaign finished",
		zap.String("campaign_id", campaignID),
		zap.Int("completed", len(completed)),
		zap.Int("configured", len(configs)))
	return nil
}

// initialCleanup clears both backends and stale log files so the first
// iteration starts from empty state.
func (c *Campaign) initialCleanup(ctx context.Context, site string) {
	c.logger.Info("clearing existing crawl state")
	c.sqliteReset(c.cfg.DataDir, site)
	if err := c.pgReset(ctx); err != nil {
		c.logger.Warn("postgres reset failed; continuing", zap.Error(err))
	}

	logs, err := filepath.Glob(filepath.Join(c.cfg.DataDir, "*_crawl.log"))
	if err == nil {
		for _, path := range logs {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				c.logger.Warn("could not remove stale log", zap.String("path", path), zap.Error(err))
			}
		}
	}
}

// resetForNext clears only the storage the next configuration uses.
func (c *Campaign) resetForNext(ctx context.Context, site string, next bench.TestConfig) {
	c.sleep(ctx, c.preReset)
	switch next.Backend {
	case bench.BackendSQLite:
		c.logger.Info("clearing sqlite state before next run", zap.String("next", next.Label))
		c.sqliteReset(c.cfg.DataDir, site)
	case bench.BackendPostgres:
		c.logger.Info("resetting postgres before next run", zap.String("next", next.Label))
		if err := c.pgReset(ctx); err != nil {
			c.logger.Warn("postgres reset failed; continuing", zap.Error(err))
		}
	}
	c.sleep(ctx, c.postReset)
}

func (c *Campaign) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
