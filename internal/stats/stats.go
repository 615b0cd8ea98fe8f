// Package stats extracts crawl metrics from the external crawler's
// persistent storage. Readers are read-only: they never write to the
// crawler's database.
package stats

import (
	"context"
	"errors"
)

// ErrNoSnapshot indicates the crawl storage does not exist or could not be
// read. Callers treat it as "no metrics available", not as a failure.
var ErrNoSnapshot = errors.New("no crawl snapshot available")

// Snapshot is a point-in-time read of crawl progress.
type Snapshot struct {
	URLsTotal       int64
	FrontierDone    int64
	FrontierQueued  int64
	FrontierPending int64
	PagesWritten    int64
	Status200       int64
	StatusNon200    int64
	Failures        int64
	Retries         int64
}

// Reader produces a fresh Snapshot from one storage backend.
type Reader interface {
	// Read returns the current snapshot, or ErrNoSnapshot when the
	// underlying storage is absent or unreadable.
	Read(ctx context.Context) (*Snapshot, error)
}

// non200Total sums every histogram bucket whose status code is not 200.
func non200Total(histogram map[int64]int64) int64 {
	var n int64
	for code, count := range histogram {
		if code != 200 {
			n += count
		}
	}
	return n
}
