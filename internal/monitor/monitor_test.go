package monitor

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mfields/crawlbench/internal/bench"
)

// syncBuffer lets the test read monitor output while the goroutine is
// still writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newCrawlDB(t *testing.T, pages, urls int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "example_com_crawl.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE urls (url TEXT PRIMARY KEY)`,
		`CREATE TABLE frontier (url TEXT PRIMARY KEY, status TEXT NOT NULL)`,
		`CREATE TABLE content (url TEXT PRIMARY KEY, body BLOB)`,
		`CREATE TABLE page_metadata (url TEXT PRIMARY KEY, final_status_code INTEGER)`,
		`CREATE TABLE failed_urls (url TEXT PRIMARY KEY, retry_count INTEGER)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	for i := 0; i < urls; i++ {
		_, err := db.Exec(`INSERT INTO urls VALUES (?)`, i)
		require.NoError(t, err)
	}
	for i := 0; i < pages; i++ {
		_, err := db.Exec(`INSERT INTO content VALUES (?, x'')`, i)
		require.NoError(t, err)
	}
	return path
}

func TestMonitorReportsProgress(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	m := Start(Config{
		Backend:        bench.BackendSQLite,
		CrawlDBPath:    newCrawlDB(t, 3, 9),
		LogPath:        filepath.Join(t.TempDir(), "missing.log"),
		PollInterval:   10 * time.Millisecond,
		ReportInterval: 20 * time.Millisecond,
		Out:            out,
	})

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("3 pages crawled"))
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	assert.Contains(t, out.String(), "9 URLs found")
}

func TestMonitorSurfacesLogErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "run_crawl.log")
	logLines := "fetched https://example.com/a\n" +
		"ERROR: connection reset\n" +
		"Traceback (most recent call last)\n" +
		"request failed: timeout\n"
	require.NoError(t, os.WriteFile(logPath, []byte(logLines), 0o644))

	out := &syncBuffer{}
	m := Start(Config{
		Backend:        bench.BackendSQLite,
		CrawlDBPath:    newCrawlDB(t, 0, 0),
		LogPath:        logPath,
		PollInterval:   10 * time.Millisecond,
		ReportInterval: 20 * time.Millisecond,
		Out:            out,
	})

	require.Eventually(t, func() bool {
		s := out.String()
		return bytes.Contains([]byte(s), []byte("ERROR: connection reset")) &&
			bytes.Contains([]byte(s), []byte("request failed: timeout"))
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))

	// A line is only ever shown once, no matter how many reports fire.
	assert.Equal(t, 1, bytes.Count([]byte(out.String()), []byte("ERROR: connection reset")))
}

func TestMonitorStopsWhileStorageMissing(t *testing.T) {
	t.Parallel()

	m := Start(Config{
		Backend:      bench.BackendSQLite,
		CrawlDBPath:  filepath.Join(t.TempDir(), "never_created.db"),
		LogPath:      filepath.Join(t.TempDir(), "never_created.log"),
		PollInterval: 10 * time.Millisecond,
		Out:          &syncBuffer{},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
}

func TestMonitorPostgresIdlesUntilStopped(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	m := Start(Config{
		Backend:      bench.BackendPostgres,
		PollInterval: 10 * time.Millisecond,
		Out:          out,
	})

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))

	// No progress lines for the no-op backend, just the final line clear.
	assert.NotContains(t, out.String(), "pages crawled")
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	t.Parallel()

	m := Start(Config{
		Backend:      bench.BackendSQLite,
		CrawlDBPath:  filepath.Join(t.TempDir(), "none.db"),
		PollInterval: 10 * time.Millisecond,
		Out:          &syncBuffer{},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	require.NoError(t, m.Stop(ctx))
}
