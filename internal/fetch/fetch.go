// Package fetch executes one claimed frontier URL through the transport
// and rate-limit governor, writes the CAS blob and document version on new
// content, and records exactly one CrawlRequest row per attempt (spec.md
// §4.E). The fetcher never calls the governor more than once per attempt
// and never transitions the frontier row more than once per attempt.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/foiacorpus/corpus/internal/hash"
	"github.com/foiacorpus/corpus/internal/metrics"
	"github.com/foiacorpus/corpus/internal/mime"
	"github.com/foiacorpus/corpus/internal/ratelimit"
	"github.com/foiacorpus/corpus/internal/store"
	"github.com/foiacorpus/corpus/internal/transport"
)

// Outcome labels the terminal disposition of one fetch attempt, matching
// spec.md §4.E's enumeration.
type Outcome string

const (
	OutcomeNew         Outcome = "new"
	OutcomeNotModified Outcome = "not_modified"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeFailed      Outcome = "failed"
	OutcomeThrottled   Outcome = "throttled"
)

// ErrThrottled marks a 429 or 403-pattern response (spec.md §7's "Throttle" kind).
var ErrThrottled = errors.New("fetch: throttled")

// ErrPermanent marks a response the retry ladder should not keep retrying
// forever (spec.md §7's "Permanent fetch" kind); the frontier's own
// retry-count ladder still governs the actual discovered -> exhausted
// transition, this error only labels the outcome for callers/logging.
var ErrPermanent = errors.New("fetch: permanent failure")

// Config bounds one fetch attempt.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	BaseRetryDelayMS int64
	StorageMode     hash.StorageMode
}

// Fetcher executes claimed frontier URLs.
type Fetcher struct {
	Transport transport.Transport
	Governor  *ratelimit.Governor
	Writer    *hash.Writer
	Store     store.Store
	Config    Config
}

// Run executes one fetch attempt for a claimed CrawlURL and returns its
// outcome. It performs exactly one governor decision and one frontier
// transition, and always writes one CrawlRequest row.
func (f *Fetcher) Run(ctx context.Context, source *store.Source, u *store.CrawlURL) (Outcome, error) {
	domain, err := ratelimit.Domain(u.URL)
	if err != nil {
		return f.fail(ctx, u, fmt.Sprintf("parse url: %v", err), 0, 0, time.Now())
	}

	if err := f.Governor.Wait(ctx, domain); err != nil {
		return OutcomeFailed, err
	}

	started := time.Now()
	req := transport.Request{
		URL:         u.URL,
		IfNoneMatch: u.ETag,
		IfModified:  u.LastModified,
		Timeout:     f.Config.Timeout,
	}

	resp, err := f.Transport.Fetch(ctx, req)
	duration := time.Since(started)
	if err != nil {
		return f.fail(ctx, u, err.Error(), responseStatusCode(resp), duration.Milliseconds(), started)
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.Governor.Report(domain, ratelimit.OutcomeSuccess)
		return f.notModified(ctx, u, resp, duration, started)

	case resp.StatusCode == http.StatusTooManyRequests:
		f.Governor.Report(domain, ratelimit.OutcomeThrottled)
		metrics.FetchTotal.WithLabelValues(metrics.FetchThrottled).Inc()
		return f.failRequest(ctx, u, resp, "429 too many requests", duration, started, ErrThrottled)

	case resp.StatusCode == http.StatusForbidden:
		f.Governor.Report(domain, ratelimit.OutcomeForbidden)
		return f.failRequest(ctx, u, resp, "403 forbidden", duration, started, ErrThrottled)

	case resp.StatusCode >= 400:
		f.Governor.Report(domain, ratelimit.OutcomeSuccess)
		metrics.FetchTotal.WithLabelValues(metrics.FetchFailed).Inc()
		return f.failRequest(ctx, u, resp, fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)), duration, started, ErrPermanent)

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		f.Governor.Report(domain, ratelimit.OutcomeSuccess)
		return f.succeed(ctx, source, u, resp, duration, started)

	default:
		f.Governor.Report(domain, ratelimit.OutcomeSuccess)
		return f.failRequest(ctx, u, resp, fmt.Sprintf("unexpected status %d", resp.StatusCode), duration, started, nil)
	}
}

func responseStatusCode(r *transport.Response) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

func (f *Fetcher) fail(ctx context.Context, u *store.CrawlURL, msg string, statusCode int, durationMS int64, started time.Time) (Outcome, error) {
	_ = f.Store.LogRequest(ctx, &store.CrawlRequest{
		CrawlURLID: u.ID,
		StartedAt:  started.Unix(),
		DurationMS: durationMS,
		StatusCode: statusCode,
		Error:      msg,
	})
	metrics.FetchTotal.WithLabelValues(metrics.FetchFailed).Inc()
	if err := f.Store.MarkFailed(ctx, u.ID, msg, f.Config.MaxRetries, f.Config.BaseRetryDelayMS); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeFailed, nil
}

func (f *Fetcher) failRequest(ctx context.Context, u *store.CrawlURL, resp *transport.Response, msg string, duration time.Duration, started time.Time, kind error) (Outcome, error) {
	wasConditional := u.ETag != "" || u.LastModified != ""
	_ = f.Store.LogRequest(ctx, &store.CrawlRequest{
		CrawlURLID:     u.ID,
		StartedAt:      started.Unix(),
		DurationMS:     duration.Milliseconds(),
		StatusCode:     resp.StatusCode,
		ResponseHeaders: headerJSON(resp.Headers),
		ResponseSize:   int64(len(resp.Body)),
		Error:          msg,
		WasConditional: wasConditional,
	})
	if err := f.Store.MarkFailed(ctx, u.ID, msg, f.Config.MaxRetries, f.Config.BaseRetryDelayMS); err != nil {
		return OutcomeFailed, err
	}
	if errors.Is(kind, ErrThrottled) {
		return OutcomeThrottled, nil
	}
	return OutcomeFailed, nil
}

func (f *Fetcher) notModified(ctx context.Context, u *store.CrawlURL, resp *transport.Response, duration time.Duration, started time.Time) (Outcome, error) {
	_ = f.Store.LogRequest(ctx, &store.CrawlRequest{
		CrawlURLID:     u.ID,
		StartedAt:      started.Unix(),
		DurationMS:     duration.Milliseconds(),
		StatusCode:     resp.StatusCode,
		ResponseHeaders: headerJSON(resp.Headers),
		WasConditional: true,
		WasNotModified: true,
	})
	now := time.Now().Unix()
	if err := f.Store.MarkFetched(ctx, u.ID, u.ETag, u.LastModified, u.ContentHash, u.DocumentID, now); err != nil {
		return OutcomeFailed, err
	}
	metrics.FetchTotal.WithLabelValues(metrics.FetchNotModified).Inc()
	return OutcomeNotModified, nil
}

func (f *Fetcher) succeed(ctx context.Context, source *store.Source, u *store.CrawlURL, resp *transport.Response, duration time.Duration, started time.Time) (Outcome, error) {
	digests, err := hash.Sum(bytesReader(resp.Body))
	if err != nil {
		return f.fail(ctx, u, fmt.Sprintf("hash response: %v", err), resp.StatusCode, duration.Milliseconds(), started)
	}

	wasConditional := u.ETag != "" || u.LastModified != ""

	if digests.SHA256 == u.ContentHash && u.ContentHash != "" {
		// Unchanged content under a non-conditional 200 (spec.md §4.E).
		_ = f.Store.LogRequest(ctx, &store.CrawlRequest{
			CrawlURLID:     u.ID,
			StartedAt:      started.Unix(),
			DurationMS:     duration.Milliseconds(),
			StatusCode:     resp.StatusCode,
			ResponseHeaders: headerJSON(resp.Headers),
			ResponseSize:   int64(len(resp.Body)),
			WasConditional: wasConditional,
		})
		now := time.Now().Unix()
		if err := f.Store.MarkFetched(ctx, u.ID, resp.ETag, resp.LastModified, digests.SHA256, u.DocumentID, now); err != nil {
			return OutcomeFailed, err
		}
		metrics.FetchTotal.WithLabelValues(metrics.FetchUnchanged).Inc()
		return OutcomeUnchanged, nil
	}

	mimeType := resp.Headers.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.GuessFromURL(u.URL)
	}
	ext := extensionFromURL(u.URL)
	if ext == "" {
		ext = mime.ExtensionFor(mimeType)
	}

	stored, err := f.Writer.Store(bytesReader(resp.Body), basenameFromURL(u.URL), ext, func(d hash.Digests) (string, bool) {
		path, found, err := f.Store.FindDedup(ctx, d.SHA256, d.BLAKE3, d.Size)
		if err != nil {
			return "", false
		}
		return path, found
	})
	if err != nil {
		return f.fail(ctx, u, fmt.Sprintf("store content: %v", err), resp.StatusCode, duration.Milliseconds(), started)
	}

	doc, err := f.Store.UpsertDocument(ctx, &store.Document{
		SourceID:        source.ID,
		SourceURL:       u.URL,
		DiscoveryMethod: u.DiscoveryMethod,
		CategoryID:      string(mime.TypeCategory(mimeType)),
	})
	if err != nil {
		return f.fail(ctx, u, fmt.Sprintf("upsert document: %v", err), resp.StatusCode, duration.Milliseconds(), started)
	}

	now := time.Now().Unix()
	if _, err := f.Store.AddVersion(ctx, &store.DocumentVersion{
		DocumentID:        doc.ID,
		ContentHash:       stored.SHA256,
		ContentHashBLAKE3: stored.BLAKE3,
		FilePath:          stored.Path,
		FileSize:          stored.Size,
		MimeType:          mimeType,
		AcquiredAt:        &now,
		SourceURL:         u.URL,
		OriginalFilename:  basenameFromURL(u.URL),
	}); err != nil {
		return f.fail(ctx, u, fmt.Sprintf("add version: %v", err), resp.StatusCode, duration.Milliseconds(), started)
	}

	if err := f.Store.RecategorizeFromVersion(ctx, doc.ID, mimeType); err != nil {
		return f.fail(ctx, u, fmt.Sprintf("recategorize: %v", err), resp.StatusCode, duration.Milliseconds(), started)
	}
	if err := f.Store.SetStatus(ctx, doc.ID, store.StatusDownloaded); err != nil {
		return f.fail(ctx, u, fmt.Sprintf("set status: %v", err), resp.StatusCode, duration.Milliseconds(), started)
	}

	_ = f.Store.LogRequest(ctx, &store.CrawlRequest{
		CrawlURLID:     u.ID,
		StartedAt:      started.Unix(),
		DurationMS:     duration.Milliseconds(),
		StatusCode:     resp.StatusCode,
		ResponseHeaders: headerJSON(resp.Headers),
		ResponseSize:   int64(len(resp.Body)),
		WasConditional: wasConditional,
	})
	if err := f.Store.MarkFetched(ctx, u.ID, resp.ETag, resp.LastModified, stored.SHA256, doc.ID, now); err != nil {
		return OutcomeFailed, err
	}

	metrics.FetchTotal.WithLabelValues(metrics.FetchNew).Inc()
	return OutcomeNew, nil
}

func headerJSON(h http.Header) string {
	if len(h) == 0 {
		return ""
	}
	b, err := json.Marshal(h)
	if err != nil {
		return ""
	}
	return string(b)
}
