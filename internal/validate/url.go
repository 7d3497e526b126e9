// Package validate provides input validation for the crawl and storage layers.
//
// The store package does not call these validators itself; inputs written
// through the store are validated only where a caller applies them.
package validate

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxURLLength bounds the length of a crawl URL accepted into the frontier.
// Chosen well above any real URL while still rejecting pathological input.
const MaxURLLength = 8192

// URL validates a crawl target URL and returns its canonical string form.
//
// Validation rules:
//   - Empty URLs rejected
//   - Scheme must be http or https (the fetcher has no other transport)
//   - Host must be non-empty
//   - Length capped at MaxURLLength
//   - Fragment is stripped (it never reaches the server and would cause
//     spurious frontier duplicates)
func URL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	if len(raw) > MaxURLLength {
		return "", ErrURLTooLong
	}
	if strings.ContainsRune(raw, 0) {
		return "", fmt.Errorf("%w: null byte in url", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	u.Fragment = ""
	return u.String(), nil
}

// Domain validates and lower-cases a registrable domain used as a rate-limit
// governor key or source seed host.
func Domain(d string) (string, error) {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" || strings.ContainsAny(d, "/ \t\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, d)
	}
	return d, nil
}

// ContentSize checks a payload size against a configured ceiling. max<=0 means
// no limit, used by callers that enforce limits elsewhere (e.g. streaming
// writers that bound size during the copy itself).
func ContentSize(n int64, max int64) error {
	if max > 0 && n > max {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrContentTooLarge, n, max)
	}
	return nil
}
