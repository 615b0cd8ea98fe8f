// Package reset clears backend-specific crawl state between benchmark
// iterations so runs start from empty storage.
package reset

import (
	"bytes"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/mfields/crawlbench/internal/sitename"
)

// Outcome is the per-file result of a best-effort deletion.
type Outcome string

const (
	// OutcomeDeleted means the file existed and was removed.
	OutcomeDeleted Outcome = "deleted"
	// OutcomeMissing means there was nothing to remove.
	OutcomeMissing Outcome = "missing"
	// OutcomeSkippedLocked means another process holds the file open and
	// deletion was refused; the file is left in place.
	OutcomeSkippedLocked Outcome = "skipped-locked"
	// OutcomeFailed covers any other removal error.
	OutcomeFailed Outcome = "failed"
)

// FileResult reports what happened to one file during a SQLite reset.
type FileResult struct {
	Path    string
	Outcome Outcome
	Err     error
}

// SQLiteFiles lists the crawl database and its side files for a site: the
// primary database, its write-ahead log and shared-memory file, and the
// separate pages database.
func SQLiteFiles(dataDir, site string) []string {
	crawlDB := sitename.CrawlDBPath(dataDir, site)
	return []string{
		crawlDB,
		crawlDB + "-shm",
		crawlDB + "-wal",
		sitename.PagesDBPath(dataDir, site),
	}
}

// SQLite removes the embedded-backend state for a site. Locked files are
// skipped with a warning, never a hard failure; the per-file outcomes let
// callers see exactly what happened.
func SQLite(dataDir, site string, logger *zap.Logger) []FileResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	files := SQLiteFiles(dataDir, site)

	if holders := openFileHolders(files); holders != "" {
		logger.Warn("crawl database files may be held open by another process",
			zap.String("site", site),
			zap.String("holders", holders))
	}

	results := make([]FileResult, 0, len(files))
	for _, path := range files {
		results = append(results, removeFile(path, logger))
	}
	return results
}

func removeFile(path string, logger *zap.Logger) FileResult {
	err := os.Remove(path)
	switch {
	case err == nil:
		return FileResult{Path: path, Outcome: OutcomeDeleted}
	case os.IsNotExist(err):
		return FileResult{Path: path, Outcome: OutcomeMissing}
	case os.IsPermission(err):
		logger.Warn("crawl database file is locked; skipping",
			zap.String("path", path), zap.Error(err))
		return FileResult{Path: path, Outcome: OutcomeSkippedLocked, Err: err}
	default:
		logger.Warn("could not delete crawl database file",
			zap.String("path", path), zap.Error(err))
		return FileResult{Path: path, Outcome: OutcomeFailed, Err: err}
	}
}

// openFileHolders asks lsof which processes hold the files open. Purely
// advisory: any failure (lsof absent, none open) yields an empty string.
func openFileHolders(files []string) string {
	out, err := exec.Command("lsof", files...).Output()
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(out))
}
