package runner

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfields/crawlbench/internal/bench"
	"github.com/mfields/crawlbench/internal/sitename"
	"github.com/mfields/crawlbench/internal/stats"
)

type stubReader struct {
	snap *stats.Snapshot
	err  error
}

func (s stubReader) Read(context.Context) (*stats.Snapshot, error) {
	return s.snap, s.err
}

func newTestRunner(t *testing.T, crawlerCmd []string, reader stats.Reader) *Runner {
	t.Helper()

	r := New(Config{
		CrawlerCommand:     crawlerCmd,
		TargetURL:          "https://www.example.com",
		DataDir:            t.TempDir(),
		SettleDelay:        time.Millisecond,
		MonitorStopTimeout: time.Second,
		PollInterval:       10 * time.Millisecond,
		ReportInterval:     time.Hour,
		MonitorOut:         io.Discard,
	})
	r.newReader = func(bench.TestConfig, string) (stats.Reader, error) {
		return reader, nil
	}
	return r
}

func TestExecuteAssemblesResult(t *testing.T) {
	t.Parallel()

	reader := stubReader{snap: &stats.Snapshot{
		URLsTotal:    40,
		FrontierDone: 25,
		PagesWritten: 25,
		Status200:    24,
		StatusNon200: 1,
		Failures:     1,
		Retries:      2,
	}}
	r := newTestRunner(t, []string{"true"}, reader)

	cfg := bench.TestConfig{Label: "default_http_sqlite", Backend: bench.BackendSQLite, HTTPBackend: "auto"}
	res, err := r.Execute(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "default_http_sqlite", res.Label)
	assert.Equal(t, bench.BackendSQLite, res.Backend)
	assert.Equal(t, int64(25), res.PagesWritten)
	assert.Equal(t, int64(40), res.URLsTotal)
	assert.Equal(t, "exit code: 0", res.Notes)
	assert.Greater(t, res.DurationS, 0.0)
	assert.Greater(t, res.PagesPerSec, 0.0)
	assert.GreaterOrEqual(t, res.EndTS, res.StartTS)
}

func TestExecuteRecordsNonZeroExit(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, []string{"false"}, stubReader{snap: &stats.Snapshot{}})

	cfg := bench.TestConfig{Label: "default_http_sqlite", Backend: bench.BackendSQLite}
	res, err := r.Execute(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "exit code: 1", res.Notes)
}

func TestExecuteSkipsOnLaunchFailure(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, []string{"/nonexistent/crawler-binary"}, stubReader{snap: &stats.Snapshot{}})

	res, err := r.Execute(context.Background(), bench.TestConfig{Label: "x", Backend: bench.BackendSQLite})
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestExecuteDegradesToEmptyMetrics(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, []string{"true"}, stubReader{err: stats.ErrNoSnapshot})

	res, err := r.Execute(context.Background(), bench.TestConfig{Label: "x", Backend: bench.BackendSQLite})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Zero(t, res.PagesWritten)
	assert.Zero(t, res.URLsTotal)
	assert.Zero(t, res.PagesPerSec)
}

func TestExecuteTruncatesLogFile(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, []string{"true"}, stubReader{snap: &stats.Snapshot{}})
	logPath := sitename.LogPath(r.cfg.DataDir, "default_http_sqlite")
	require.NoError(t, os.WriteFile(logPath, []byte("stale output from a prior run\n"), 0o644))

	_, err := r.Execute(context.Background(), bench.TestConfig{Label: "default_http_sqlite", Backend: bench.BackendSQLite})
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale output")
}
