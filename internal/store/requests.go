package store

import (
	"context"
	"fmt"
)

// LogRequest appends one HTTP round-trip row. Rows are never updated or
// deleted (spec 4.E): the log is the crawl's audit trail.
func (d *DB) LogRequest(ctx context.Context, r *CrawlRequest) error {
	row := d.backend.QueryRow(ctx, `
		INSERT INTO crawl_requests (crawl_url_id, started_at, duration_ms, status_code, request_headers, response_headers, response_size, error, was_conditional, was_not_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		r.CrawlURLID, r.StartedAt, r.DurationMS, r.StatusCode, r.RequestHeaders, r.ResponseHeaders, r.ResponseSize, r.Error,
		boolToInt(r.WasConditional), boolToInt(r.WasNotModified))

	var id int64
	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("insert crawl request: %w", err)
	}
	r.ID = id
	return nil
}
