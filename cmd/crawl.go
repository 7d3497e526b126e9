/*
Copyright © 2026 James Lawson (jpl-au) <hello@caelisco.net>
*/

// crawl.go implements "foiacorpus crawl", which drains a source's URL
// frontier through the fetcher until it is empty or a --max cap is hit.
package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foiacorpus/corpus/internal/config"
	"github.com/foiacorpus/corpus/internal/fetch"
	"github.com/foiacorpus/corpus/internal/hash"
	"github.com/foiacorpus/corpus/internal/log"
	"github.com/foiacorpus/corpus/internal/progress"
	"github.com/foiacorpus/corpus/internal/ratelimit"
	"github.com/foiacorpus/corpus/internal/store"
	"github.com/foiacorpus/corpus/internal/transport"
	"github.com/spf13/cobra"
)

func newCrawlCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "crawl",
		Short: "Drain a source's URL frontier through the fetcher",
		Long: `Drain a source's URL frontier through the fetcher.

  foiacorpus crawl --source doj-foia

Claims one URL at a time (breadth-first within the source), fetches it
through the rate-limit governor, and stops when the frontier is empty or
--max claims have been made.`,
		RunE: runCrawl,
	}
	c.Flags().Int("max", 0, "Stop after this many claims (0 = no limit)")
	return c
}

// domainCache tracks which domains' governor state has already been
// restored this process, avoiding a redundant load on every claim.
type domainCache struct {
	seen map[string]bool
}

func runCrawl(c *cobra.Command, _ []string) error {
	ctx := c.Context()
	sourceID := SourceID()
	if sourceID == "" {
		return PrintJSONError(fmt.Errorf("--source is required"))
	}
	maxClaims, _ := c.Flags().GetInt("max")

	source, err := theStore.GetSource(ctx, sourceID)
	if err != nil {
		return PrintJSONError(fmt.Errorf("lookup source %q: %w", sourceID, err))
	}

	cfg := Config()
	staleHorizon := time.Now().Unix() - 4*cfg.FetchTimeoutMS()/1000
	if swept, err := theStore.SweepStaleClaims(ctx, staleHorizon); err != nil {
		return PrintJSONError(fmt.Errorf("sweep stale claims: %w", err))
	} else if swept > 0 {
		log.Event("crawl:sweep", "sweep").SourceID(sourceID).Detail("count", swept).Write(nil)
	}
	if _, err := theStore.ReleaseRetryable(ctx, sourceID, time.Now().Unix()); err != nil {
		return PrintJSONError(fmt.Errorf("release retryable urls: %w", err))
	}

	if err := invalidateOnConfigChange(ctx, sourceID, cfg); err != nil {
		return PrintJSONError(err)
	}

	governor := ratelimit.New(ratelimit.Config{
		FloorMS:   cfg.RateLimitFloorMS(),
		CeilingMS: cfg.RateLimitCeilingMS(),
	})
	writer, err := hash.NewWriter(cfg.CASRoot(), hash.ModeCopy)
	if err != nil {
		return PrintJSONError(fmt.Errorf("open cas writer: %w", err))
	}
	fetcher := &fetch.Fetcher{
		Transport: transport.NewDefault(time.Duration(cfg.FetchTimeoutMS()) * time.Millisecond),
		Governor:  governor,
		Writer:    writer,
		Store:     theStore,
		Config: fetch.Config{
			Timeout:          time.Duration(cfg.FetchTimeoutMS()) * time.Millisecond,
			MaxRetries:       cfg.MaxRetries(),
			BaseRetryDelayMS: cfg.BaseRetryDelayMS(),
			StorageMode:      hash.ModeCopy,
		},
	}

	dc := &domainCache{seen: map[string]bool{}}
	restoreDomain := func(rawURL string) {
		domain, err := ratelimit.Domain(rawURL)
		if err != nil || dc.seen[domain] {
			return
		}
		dc.seen[domain] = true
		st, err := theStore.LoadRateLimitState(ctx, domain)
		if err != nil || st == nil {
			return
		}
		governor.Restore(domain, st.CurrentDelayMS, st.LastRequestAt, st.InBackoff, st.TotalRequests, st.TotalThrottled)
	}
	persistDomain := func(rawURL string) {
		domain, err := ratelimit.Domain(rawURL)
		if err != nil {
			return
		}
		snap := governor.Snapshot(domain)
		_ = theStore.SaveRateLimitState(ctx, &store.RateLimitState{
			Domain:         domain,
			CurrentDelayMS: snap.CurrentDelayMS,
			LastRequestAt:  snap.LastRequestAt,
			InBackoff:      snap.InBackoff,
			TotalRequests:  snap.TotalRequests,
			TotalThrottled: snap.TotalThrottled,
		})
	}

	var claims, newDocs, failures int
	var bar *progress.Progress
	var spin *progress.Spinner
	if maxClaims > 0 {
		bar = progress.New("crawling", maxClaims)
	} else {
		spin = progress.NewSpinner("crawling")
		spin.Start()
		defer spin.Stop()
	}
	for {
		if maxClaims > 0 && claims >= maxClaims {
			break
		}
		u, err := theStore.ClaimPending(ctx, sourceID)
		if err != nil {
			return PrintJSONError(fmt.Errorf("claim pending url: %w", err))
		}
		if u == nil {
			break
		}
		claims++
		if bar != nil {
			bar.Increment()
			bar.Print()
		} else {
			spin.Tick()
		}

		restoreDomain(u.URL)
		outcome, err := fetcher.Run(ctx, source, u)
		persistDomain(u.URL)

		log.Event("fetch:claim", "fetch").
			SourceID(sourceID).
			URL(u.URL).
			Detail("outcome", string(outcome)).
			Write(err)

		switch outcome {
		case fetch.OutcomeNew:
			newDocs++
		case fetch.OutcomeFailed, fetch.OutcomeThrottled:
			failures++
		}
	}
	if bar != nil {
		bar.Done()
	}
	if err := theStore.TouchLastScraped(ctx, sourceID, time.Now().Unix()); err != nil {
		return PrintJSONError(fmt.Errorf("touch last scraped: %w", err))
	}

	if JSON() {
		return PrintJSON(map[string]any{"source": sourceID, "claims": claims, "new_documents": newDocs, "failures": failures})
	}
	fmt.Fprintf(Out(), "crawled %s: %d claim(s), %d new document(s), %d failure(s)\n", sourceID, claims, newDocs, failures)
	return nil
}

// effectiveCrawlConfigSnapshot canonicalizes the crawl settings that change
// what a fetch expects to find (timeouts, retry schedule, rate-limit
// bounds) into a deterministic JSON encoding. Map keys sort alphabetically
// under encoding/json, so the same settings always hash the same way
// regardless of Go struct field order (spec 4.H).
func effectiveCrawlConfigSnapshot(cfg *config.Config) ([]byte, error) {
	fields := map[string]any{
		"base_retry_delay_ms":   cfg.BaseRetryDelayMS(),
		"fetch_timeout_ms":      cfg.FetchTimeoutMS(),
		"max_retries":           cfg.MaxRetries(),
		"rate_limit_ceiling_ms": cfg.RateLimitCeilingMS(),
		"rate_limit_floor_ms":   cfg.RateLimitFloorMS(),
	}
	snapshot, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode crawl config snapshot: %w", err)
	}
	return snapshot, nil
}

// invalidateOnConfigChange implements spec 4.H's compare-reenqueue-store
// sequence: if sourceID's effective crawl config has changed since its last
// recorded hash, every fetched URL is reset to discovered so the next claim
// loop re-fetches instead of trusting now-stale conditional-request state,
// then the new hash is recorded (including the first time a source is
// crawled, so the next run has a baseline to compare against).
func invalidateOnConfigChange(ctx context.Context, sourceID string, cfg *config.Config) error {
	snapshot, err := effectiveCrawlConfigSnapshot(cfg)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(snapshot)
	hash := hex.EncodeToString(sum[:])

	prevHash, hadPrev, err := theStore.GetConfigHash(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("read config hash: %w", err)
	}
	if hadPrev && prevHash == hash {
		return nil
	}

	if hadPrev {
		n, err := theStore.ReenqueueFetched(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("reenqueue fetched urls: %w", err)
		}
		log.Event("crawl:config-invalidated", "crawl").SourceID(sourceID).Detail("reenqueued", n).Write(nil)
	}

	if err := theStore.SetConfigHash(ctx, sourceID, hash, string(snapshot), time.Now().Unix()); err != nil {
		return fmt.Errorf("store config hash: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newCrawlCmd())
}
