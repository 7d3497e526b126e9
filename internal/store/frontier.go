package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// AddURL inserts a frontier entry, reporting false (not an error) when the
// (source_id, url) unique pair already exists — discovery is expected to
// re-observe links across a crawl and the frontier must absorb that
// silently (spec 4.C).
func (d *DB) AddURL(ctx context.Context, u *CrawlURL) (bool, error) {
	if u.Status == "" {
		u.Status = URLDiscovered
	}
	row := d.backend.QueryRow(ctx, `
		INSERT INTO crawl_urls (source_id, url, status, discovery_method, parent_url, discovery_context, depth, discovered_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM crawl_urls WHERE source_id = ? AND url = ?)
		RETURNING id`,
		u.SourceID, u.URL, u.Status, u.DiscoveryMethod, u.ParentURL, u.DiscoveryContext, u.Depth, u.DiscoveredAt,
		u.SourceID, u.URL)

	var id int64
	if err := row.Scan(&id); err != nil {
		if noRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert crawl url: %w", err)
	}
	u.ID = id
	return true, nil
}

// ClaimPending atomically selects and marks one discovered URL as
// fetching, ordered by depth then discovery time (breadth-first within a
// source), and returns nil with no error when the frontier is empty for
// sourceID (spec 4.C: claim is a no-op, not an error, on an empty queue).
//
// Only status = discovered is claimable. A failed row's next_retry_at is
// honored by ReleaseRetryable, which promotes eligible rows back to
// discovered on its own schedule (spec 4.C); claiming failed rows directly
// here would bypass that backoff schedule entirely.
//
// The select-then-update runs inside Backend.ClaimTransaction, and the
// UPDATE only matches a row still in discovered status, so the embedded
// backend's process-local mutex and the server backend's row-level lock
// on the UPDATE both prevent two callers from claiming the same row;
// this is the frontier's one named synchronization point (spec 5).
func (d *DB) ClaimPending(ctx context.Context, sourceID string) (*CrawlURL, error) {
	var claimed *CrawlURL
	err := d.backend.ClaimTransaction(ctx, func(tx *sql.Tx) error {
		var id int64
		for {
			row := tx.QueryRowContext(ctx, rebindForTx(d, `
				SELECT id FROM crawl_urls
				WHERE source_id = ? AND status = ?
				ORDER BY depth ASC, discovered_at ASC
				LIMIT 1`), sourceID, URLDiscovered)

			if err := row.Scan(&id); err != nil {
				if err == sql.ErrNoRows {
					return nil
				}
				return fmt.Errorf("select claimable url: %w", err)
			}

			// The status guard makes this UPDATE touch no row when a
			// concurrent claimer took the row first; select again then.
			res, err := tx.ExecContext(ctx, rebindForTx(d, `
				UPDATE crawl_urls SET status = ? WHERE id = ? AND status = ?`), URLFetching, id, URLDiscovered)
			if err != nil {
				return fmt.Errorf("claim url: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("claim url: %w", err)
			}
			if n == 1 {
				break
			}
		}

		row := tx.QueryRowContext(ctx, rebindForTx(d, `
			SELECT id, source_id, url, status, discovery_method, parent_url, discovery_context, depth, discovered_at, fetched_at, retry_count, last_error, next_retry_at, etag, last_modified, content_hash, document_id
			FROM crawl_urls WHERE id = ?`), id)

		var u CrawlURL
		if err := row.Scan(&u.ID, &u.SourceID, &u.URL, &u.Status, &u.DiscoveryMethod, &u.ParentURL, &u.DiscoveryContext, &u.Depth, &u.DiscoveredAt, &u.FetchedAt, &u.RetryCount, &u.LastError, &u.NextRetryAt, &u.ETag, &u.LastModified, &u.ContentHash, &u.DocumentID); err != nil {
			return fmt.Errorf("reload claimed url: %w", err)
		}
		claimed = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkFetched transitions a claimed URL to fetched and records the
// conditional-request state the next fetch will need.
func (d *DB) MarkFetched(ctx context.Context, id int64, etag, lastModified, contentHash, documentID string, at int64) error {
	_, err := d.backend.Exec(ctx, `
		UPDATE crawl_urls SET status = ?, fetched_at = ?, etag = ?, last_modified = ?, content_hash = ?, document_id = ?
		WHERE id = ?`,
		URLFetched, at, etag, lastModified, contentHash, documentID, id)
	return err
}

// MarkFailed records a fetch failure and schedules a retry using
// exponential backoff with jitter (spec 4.C), or marks the URL exhausted
// once maxRetries is reached.
func (d *DB) MarkFailed(ctx context.Context, id int64, errMsg string, maxRetries int, baseDelayMS int64) error {
	return d.backend.Transaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, rebindForTx(d, `SELECT retry_count FROM crawl_urls WHERE id = ?`), id)
		var retries int
		if err := row.Scan(&retries); err != nil {
			return fmt.Errorf("read retry count: %w", err)
		}
		retries++

		if retries > maxRetries {
			_, err := tx.ExecContext(ctx, rebindForTx(d, `
				UPDATE crawl_urls SET status = ?, retry_count = ?, last_error = ? WHERE id = ?`),
				URLExhausted, retries, errMsg, id)
			return err
		}

		delay := retryDelay(baseDelayMS, retries)
		nextRetry := time.Now().Unix() + int64(delay/time.Second)
		_, err := tx.ExecContext(ctx, rebindForTx(d, `
			UPDATE crawl_urls SET status = ?, retry_count = ?, last_error = ?, next_retry_at = ? WHERE id = ?`),
			URLFailed, retries, errMsg, nextRetry, id)
		return err
	})
}

// retryDelay computes base*2^retries with jitter via
// backoff.ExponentialBackOff, the same primitive the rate-limit governor
// uses (spec 4.D's DRY note).
func retryDelay(baseDelayMS int64, retries int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(baseDelayMS) * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = 24 * time.Hour

	var d time.Duration
	for i := 0; i <= retries; i++ {
		d = b.NextBackOff()
	}
	return d
}

// ImportBatch adds many URLs to sourceID's frontier through one
// Backend.BatchInsert call rather than one AddURL call per row: a single
// multi-row statement on the server backend, one statement per row inside
// one transaction on the embedded backend. Duplicates against an existing (source_id, url) row
// are silently skipped, same as AddURL; the returned count is how many
// were actually inserted.
func (d *DB) ImportBatch(ctx context.Context, sourceID string, urls []string, discoveryMethod string, now int64) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(urls))
	for i, u := range urls {
		rows[i] = []any{sourceID, u, string(URLDiscovered), discoveryMethod, now}
	}
	n, err := d.backend.BatchInsert(ctx, "crawl_urls",
		[]string{"source_id", "url", "status", "discovery_method", "discovered_at"},
		rows, []string{"source_id", "url"})
	if err != nil {
		return 0, fmt.Errorf("import batch: %w", err)
	}
	return int(n), nil
}

// ReleaseRetryable moves failed URLs whose next_retry_at has elapsed back
// to discovered, making them claimable again.
func (d *DB) ReleaseRetryable(ctx context.Context, sourceID string, now int64) (int, error) {
	res, err := d.backend.Exec(ctx, `
		UPDATE crawl_urls SET status = ?
		WHERE source_id = ? AND status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?`,
		URLDiscovered, sourceID, URLFailed, now)
	if err != nil {
		return 0, fmt.Errorf("release retryable urls: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// SweepStaleClaims reclaims URLs stuck in fetching past olderThan (a unix
// timestamp), the janitor sweep spec.md §9's Open Question resolves as a
// fixed horizon of 4x the configured fetch timeout, run by the crawl
// command before each claim loop (SPEC_FULL.md 4.C).
func (d *DB) SweepStaleClaims(ctx context.Context, olderThan int64) (int, error) {
	res, err := d.backend.Exec(ctx, `
		UPDATE crawl_urls SET status = ?
		WHERE status = ? AND discovered_at <= ?`,
		URLDiscovered, URLFetching, olderThan)
	if err != nil {
		return 0, fmt.Errorf("sweep stale claims: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ReenqueueFetched resets every fetched URL for sourceID back to
// discovered, the configuration-invalidation response (spec 4.H): a
// changed crawl config invalidates conditional-fetch assumptions, so the
// next crawl re-fetches everything instead of trusting stale etags.
func (d *DB) ReenqueueFetched(ctx context.Context, sourceID string) (int, error) {
	res, err := d.backend.Exec(ctx, `
		UPDATE crawl_urls SET status = ? WHERE source_id = ? AND status = ?`,
		URLDiscovered, sourceID, URLFetched)
	if err != nil {
		return 0, fmt.Errorf("reenqueue fetched urls: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
