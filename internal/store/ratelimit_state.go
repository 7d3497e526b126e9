package store

import (
	"context"
	"fmt"
)

// LoadRateLimitState returns the governor's persisted counters for domain,
// or a zero-value state (not an error) when the domain has never been
// seen — the governor's sync.Map cache falls back to this on cold start.
func (d *DB) LoadRateLimitState(ctx context.Context, domain string) (*RateLimitState, error) {
	row := d.backend.QueryRow(ctx, `
		SELECT domain, current_delay_ms, last_request_at, consecutive_successes, in_backoff, total_requests, total_throttled
		FROM rate_limit_state WHERE domain = ?`, domain)

	var s RateLimitState
	var inBackoff int64
	if err := row.Scan(&s.Domain, &s.CurrentDelayMS, &s.LastRequestAt, &s.ConsecutiveSuccesses, &inBackoff, &s.TotalRequests, &s.TotalThrottled); err != nil {
		if noRows(err) {
			return &RateLimitState{Domain: domain}, nil
		}
		return nil, fmt.Errorf("load rate limit state: %w", err)
	}
	s.InBackoff = inBackoff != 0
	return &s, nil
}

func (d *DB) SaveRateLimitState(ctx context.Context, s *RateLimitState) error {
	_, err := d.backend.Upsert(ctx, "rate_limit_state",
		[]string{"domain", "current_delay_ms", "last_request_at", "consecutive_successes", "in_backoff", "total_requests", "total_throttled"},
		[]any{s.Domain, s.CurrentDelayMS, s.LastRequestAt, s.ConsecutiveSuccesses, boolToInt(s.InBackoff), s.TotalRequests, s.TotalThrottled},
		[]string{"domain"},
		[]string{"current_delay_ms", "last_request_at", "consecutive_successes", "in_backoff", "total_requests", "total_throttled"},
	)
	if err != nil {
		return fmt.Errorf("save rate limit state: %w", err)
	}
	return nil
}
