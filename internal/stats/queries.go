package stats

import "context"

// The crawler keeps the same logical schema in both backends, so one set of
// aggregates serves SQLite and Postgres alike.
const (
	urlCountQuery          = `SELECT COUNT(*) FROM urls`
	frontierHistogramQuery = `SELECT status, COUNT(*) FROM frontier GROUP BY status`
	pageCountQuery         = `SELECT COUNT(*) FROM content`
	statusHistogramQuery   = `SELECT COALESCE(final_status_code, 0), COUNT(*) FROM page_metadata GROUP BY final_status_code`
	failureCountQuery      = `SELECT COUNT(*) FROM failed_urls`
	retrySumQuery          = `SELECT COALESCE(SUM(retry_count), 0) FROM failed_urls`
)

// querier is the backend-neutral query surface snapshot extraction runs on.
type querier interface {
	queryValue(ctx context.Context, query string) (int64, error)
	queryStatusHistogram(ctx context.Context) (map[int64]int64, error)
	queryFrontierHistogram(ctx context.Context) (map[string]int64, error)
}

func readSnapshot(ctx context.Context, q querier) (*Snapshot, error) {
	snap := &Snapshot{}

	var err error
	if snap.URLsTotal, err = q.queryValue(ctx, urlCountQuery); err != nil {
		return nil, err
	}

	frontier, err := q.queryFrontierHistogram(ctx)
	if err != nil {
		return nil, err
	}
	snap.FrontierDone = frontier["done"]
	snap.FrontierQueued = frontier["queued"]
	snap.FrontierPending = frontier["pending"]

	if snap.PagesWritten, err = q.queryValue(ctx, pageCountQuery); err != nil {
		return nil, err
	}

	statuses, err := q.queryStatusHistogram(ctx)
	if err != nil {
		return nil, err
	}
	snap.Status200 = statuses[200]
	snap.StatusNon200 = non200Total(statuses)

	if snap.Failures, err = q.queryValue(ctx, failureCountQuery); err != nil {
		return nil, err
	}
	if snap.Retries, err = q.queryValue(ctx, retrySumQuery); err != nil {
		return nil, err
	}
	return snap, nil
}
