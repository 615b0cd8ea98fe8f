// Package bench defines the core types shared across the benchmark
// harness: test configurations and run results.
package bench

import "time"

// Backend identifies the storage engine the external crawler persists to.
type Backend string

const (
	// BackendSQLite is the embedded file backend.
	BackendSQLite Backend = "sqlite"
	// BackendPostgres is the client-server backend.
	BackendPostgres Backend = "postgresql"
)

// TestConfig is one benchmark configuration. The full ordered sequence of
// configurations is fixed when a campaign starts.
type TestConfig struct {
	Label       string
	Backend     Backend
	HTTPBackend string
	JSEnabled   bool
}

// Result is the outcome of one completed test run. It is immutable once
// assembled; the results store owns it from then on.
type Result struct {
	Label           string
	Backend         Backend
	HTTPBackend     string
	JSEnabled       bool
	StartTS         int64
	EndTS           int64
	DurationS       float64
	URLsTotal       int64
	FrontierDone    int64
	FrontierQueued  int64
	FrontierPending int64
	PagesWritten    int64
	Status200       int64
	StatusNon200    int64
	Failures        int64
	Retries         int64
	PagesPerSec     float64
	Notes           string
}

// Throughput computes pages per second over a duration, flooring at zero
// for non-positive durations.
func Throughput(pagesWritten int64, duration time.Duration) float64 {
	secs := duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(pagesWritten) / secs
}
