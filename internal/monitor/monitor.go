// Package monitor implements the background progress observer that runs
// alongside an external crawl. It polls the crawl's storage and captured
// log output on a fixed cadence and reports to the terminal, without ever
// writing to the crawl's storage.
package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mfields/crawlbench/internal/bench"
	"github.com/mfields/crawlbench/internal/stats"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultReportInterval = 60 * time.Second
	// The Postgres backend has no lightweight polling path; the monitor
	// just idles on the stop signal at a slower cadence.
	idleInterval = 10 * time.Second

	maxErrorsPerReport = 3
	progressLineWidth  = 100
)

// Config controls one Monitor instance.
type Config struct {
	Backend        bench.Backend
	CrawlDBPath    string
	LogPath        string
	PollInterval   time.Duration
	ReportInterval time.Duration
	Out            io.Writer
	Logger         *zap.Logger
}

// Monitor observes one in-flight crawl. Exactly one Monitor runs per run;
// its state is discarded when it stops.
type Monitor struct {
	cfg    Config
	stopCh chan struct{}
	doneCh chan struct{}

	stopOnce sync.Once

	// Mutated only by the run goroutine.
	lastPages  int64
	lastReport time.Time
	shown      map[string]struct{}
}

// Start launches the monitor goroutine and returns immediately.
func Start(cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = defaultReportInterval
	}
	if cfg.Out == nil {
		cfg.Out = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	m := &Monitor{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		shown:  make(map[string]struct{}),
	}
	go m.run()
	return m
}

// Stop signals the monitor and waits for it to finish, bounded by ctx. The
// caller proceeds regardless once the bound is exceeded.
func (m *Monitor) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("monitor stop: %w", ctx.Err())
	}
}

func (m *Monitor) run() {
	defer close(m.doneCh)
	defer m.clearProgressLine()

	// Give the crawler a moment to create its database.
	if !m.sleep(m.cfg.PollInterval) {
		return
	}

	if m.cfg.Backend == bench.BackendPostgres {
		m.idle()
		return
	}

	m.lastReport = time.Now()
	reader := stats.NewSQLiteReader(m.cfg.CrawlDBPath)
	for {
		snap, err := reader.Read(context.Background())
		if err != nil {
			// Database missing or locked mid-crawl; retry next poll.
			if !m.sleep(m.cfg.PollInterval) {
				return
			}
			continue
		}

		if elapsed := time.Since(m.lastReport); elapsed >= m.cfg.ReportInterval {
			m.report(snap, elapsed)
		}

		if !m.sleep(m.cfg.PollInterval) {
			return
		}
	}
}

// idle waits out the run for backends without a polling path.
func (m *Monitor) idle() {
	interval := idleInterval
	if m.cfg.PollInterval < interval {
		interval = m.cfg.PollInterval
	}
	for m.sleep(interval) {
	}
}

func (m *Monitor) report(snap *stats.Snapshot, elapsed time.Duration) {
	rate := bench.Throughput(snap.PagesWritten-m.lastPages, elapsed)

	total := snap.FrontierDone + snap.FrontierQueued + snap.FrontierPending
	var line string
	if total > 0 {
		pct := float64(snap.FrontierDone) / float64(total) * 100
		line = fmt.Sprintf("%d/%d pages (%.1f%%) | %d crawled | %.1f pages/s | %d URLs found",
			snap.FrontierDone, total, pct, snap.PagesWritten, rate, snap.URLsTotal)
	} else {
		line = fmt.Sprintf("%d pages crawled | %.1f pages/s | %d URLs found",
			snap.PagesWritten, rate, snap.URLsTotal)
	}
	fmt.Fprintf(m.cfg.Out, "\r%s%s\n", line, strings.Repeat(" ", 20))

	for _, errLine := range m.newErrorLines() {
		fmt.Fprintf(m.cfg.Out, "! %s\n", truncate(errLine, progressLineWidth))
	}

	m.lastPages = snap.PagesWritten
	m.lastReport = time.Now()
}

// newErrorLines returns the most recent distinct error lines from the log
// tail that have not been shown yet, and marks them shown.
func (m *Monitor) newErrorLines() []string {
	lines, err := scanLogTail(m.cfg.LogPath)
	if err != nil {
		return nil
	}
	fresh := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := m.shown[line]; ok {
			continue
		}
		fresh = append(fresh, line)
	}
	if len(fresh) > maxErrorsPerReport {
		fresh = fresh[len(fresh)-maxErrorsPerReport:]
	}
	for _, line := range fresh {
		m.shown[line] = struct{}{}
	}
	return fresh
}

// sleep waits for d or until the stop signal fires; it reports false once
// the monitor should exit.
func (m *Monitor) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-m.stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (m *Monitor) clearProgressLine() {
	fmt.Fprintf(m.cfg.Out, "\r%s\r", strings.Repeat(" ", progressLineWidth))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
