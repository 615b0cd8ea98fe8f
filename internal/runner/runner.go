// Package runner orchestrates a single benchmark iteration: it launches
// the external crawler, observes it through the progress monitor, and
// assembles a result from a fresh post-run stats read.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/mfields/crawlbench/internal/bench"
	"github.com/mfields/crawlbench/internal/monitor"
	"github.com/mfields/crawlbench/internal/sitename"
	"github.com/mfields/crawlbench/internal/stats"
)

const (
	defaultSettleDelay        = time.Second
	defaultMonitorStopTimeout = time.Second
)

// Config controls the Runner.
type Config struct {
	// CrawlerCommand is the external crawler invocation prefix, e.g.
	// ["python", "main.py"] or ["sqlitecrawler"].
	CrawlerCommand []string
	TargetURL      string
	DataDir        string
	Postgres       stats.PostgresConfig

	// SettleDelay is how long storage gets to flush after the process
	// exits before the authoritative stats read.
	SettleDelay        time.Duration
	MonitorStopTimeout time.Duration
	PollInterval       time.Duration
	ReportInterval     time.Duration

	// MonitorOut receives the monitor's progress lines (stderr when nil).
	MonitorOut io.Writer
	Logger     *zap.Logger
}

// Runner executes benchmark iterations sequentially; at most one external
// process and one monitor are alive at a time.
type Runner struct {
	cfg    Config
	logger *zap.Logger

	// newReader is swappable in tests.
	newReader func(tc bench.TestConfig, site string) (stats.Reader, error)
}

// New constructs a Runner.
func New(cfg Config) *Runner {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.MonitorStopTimeout <= 0 {
		cfg.MonitorStopTimeout = defaultMonitorStopTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{cfg: cfg, logger: logger}
	r.newReader = r.defaultReader
	return r
}

func (r *Runner) defaultReader(tc bench.TestConfig, site string) (stats.Reader, error) {
	if tc.Backend == bench.BackendPostgres {
		return stats.NewPostgresReader(r.cfg.Postgres, site, r.logger)
	}
	return stats.NewSQLiteReader(sitename.CrawlDBPath(r.cfg.DataDir, site)), nil
}

// Execute runs one configuration to completion and returns its result. A
// non-zero crawler exit is recorded in the result, not treated as a
// failure; launch or orchestration errors return a nil result and the
// iteration is skipped.
func (r *Runner) Execute(ctx context.Context, tc bench.TestConfig) (*bench.Result, error) {
	site, err := sitename.Derive(r.cfg.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("derive site name: %w", err)
	}

	if err := os.MkdirAll(r.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logPath := sitename.LogPath(r.cfg.DataDir, tc.Label)
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	defer logFile.Close()

	argv := BuildCommand(r.cfg.CrawlerCommand, r.cfg.TargetURL, tc)
	r.logger.Info("starting crawl",
		zap.String("label", tc.Label),
		zap.String("backend", string(tc.Backend)),
		zap.String("http_backend", tc.HTTPBackend),
		zap.Bool("js_enabled", tc.JSEnabled),
		zap.String("command", argvString(argv)),
		zap.String("log", logPath))

	mon := monitor.Start(monitor.Config{
		Backend:        tc.Backend,
		CrawlDBPath:    sitename.CrawlDBPath(r.cfg.DataDir, site),
		LogPath:        logPath,
		PollInterval:   r.cfg.PollInterval,
		ReportInterval: r.cfg.ReportInterval,
		Out:            r.cfg.MonitorOut,
		Logger:         r.logger,
	})

	start := time.Now()
	notes, runErr := r.runProcess(ctx, argv, tc, logFile)
	duration := time.Since(start)
	endTS := time.Now()

	stopCtx, cancel := context.WithTimeout(context.Background(), r.cfg.MonitorStopTimeout)
	defer cancel()
	if err := mon.Stop(stopCtx); err != nil {
		r.logger.Warn("monitor did not stop in time", zap.Error(err))
	}

	if runErr != nil {
		return nil, runErr
	}

	// Let the crawler's storage flush before the authoritative read.
	time.Sleep(r.cfg.SettleDelay)

	snap := r.readStats(ctx, tc, site)
	res := &bench.Result{
		Label:           tc.Label,
		Backend:         tc.Backend,
		HTTPBackend:     tc.HTTPBackend,
		JSEnabled:       tc.JSEnabled,
		StartTS:         start.Unix(),
		EndTS:           endTS.Unix(),
		DurationS:       duration.Seconds(),
		URLsTotal:       snap.URLsTotal,
		FrontierDone:    snap.FrontierDone,
		FrontierQueued:  snap.FrontierQueued,
		FrontierPending: snap.FrontierPending,
		PagesWritten:    snap.PagesWritten,
		Status200:       snap.Status200,
		StatusNon200:    snap.StatusNon200,
		Failures:        snap.Failures,
		Retries:         snap.Retries,
		PagesPerSec:     bench.Throughput(snap.PagesWritten, duration),
		Notes:           notes,
	}

	r.logger.Info("crawl finished",
		zap.String("label", tc.Label),
		zap.Float64("duration_s", res.DurationS),
		zap.Int64("pages_written", res.PagesWritten),
		zap.Float64("pages_per_sec", res.PagesPerSec),
		zap.Int64("urls_total", res.URLsTotal),
		zap.String("notes", res.Notes))
	return res, nil
}

// runProcess launches the crawler with its combined output captured into
// logFile and waits for it to exit. The exit code lands in the returned
// notes; only launch failures are errors.
func (r *Runner) runProcess(ctx context.Context, argv []string, tc bench.TestConfig, logFile *os.File) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = BuildEnv(os.Environ(), tc, r.cfg.Postgres)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	err := cmd.Run()
	if err == nil {
		return "exit code: 0", nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.logger.Warn("crawler exited non-zero",
			zap.String("label", tc.Label),
			zap.Int("exit_code", exitErr.ExitCode()))
		return fmt.Sprintf("exit code: %d", exitErr.ExitCode()), nil
	}
	return "", fmt.Errorf("launch crawler: %w", err)
}

// readStats performs the post-run stats read; an unobtainable snapshot
// degrades to empty metrics rather than failing the run.
func (r *Runner) readStats(ctx context.Context, tc bench.TestConfig, site string) stats.Snapshot {
	reader, err := r.newReader(tc, site)
	if err != nil {
		r.logger.Warn("stats reader unavailable", zap.String("label", tc.Label), zap.Error(err))
		return stats.Snapshot{}
	}
	snap, err := reader.Read(ctx)
	if err != nil {
		if !errors.Is(err, stats.ErrNoSnapshot) {
			r.logger.Warn("stats read failed", zap.String("label", tc.Label), zap.Error(err))
		} else {
			r.logger.Warn("no stats available", zap.String("label", tc.Label))
		}
		return stats.Snapshot{}
	}
	return *snap
}
