// Package ratelimit implements the per-domain adaptive rate-limit governor
// (spec.md §4.D): before each fetch to domain D, callers wait until the
// domain's cooldown has elapsed; after each attempt, Report adjusts the
// domain's delay based on the outcome.
package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/foiacorpus/corpus/internal/metrics"
)

// Config bounds the governor's delay range and backoff behaviour. Floor
// and ceiling come from internal/config's rate_limit.floor_ms/ceiling_ms.
type Config struct {
	FloorMS   int64
	CeilingMS int64

	// Window403 and Max403 implement the "N 403s within T" rate-limit
	// signal from spec.md §4.D: Max403 occurrences within Window403 are
	// treated the same as an explicit 429.
	Window403 time.Duration
	Max403    int
}

// domainState is one domain's governor state, guarded by its own mutex so
// no single global lock serializes unrelated domains (spec.md §5).
type domainState struct {
	mu sync.Mutex

	currentDelay time.Duration
	lastRequest  time.Time
	inBackoff    bool
	bo           *backoff.ExponentialBackOff // persistent across Report calls so the multiplier compounds

	recent403 []time.Time // ring of recent 403 timestamps, pruned by Window403

	totalRequests  int64
	totalThrottled int64
}

// newBackoff builds the domain's persistent exponential-backoff instance,
// seeded so consecutive NextBackOff calls on the same instance double the
// delay (spec.md §4.D's "multiply current_delay_ms by a configured factor
// up to a ceiling").
func newBackoff(initial, ceiling time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = ceiling
	b.MaxElapsedTime = 0 // no wall-clock cutoff; the governor's own ceiling bounds growth
	b.Reset()
	return b
}

// Governor holds per-domain state behind a sync.Map, sharded by host
// name (see Domain) so concurrent fetchers across hosts never contend
// (spec.md §5's "global state is sharded by domain").
type Governor struct {
	cfg     Config
	domains sync.Map // string -> *domainState
}

// New returns a Governor with the given bounds.
func New(cfg Config) *Governor {
	if cfg.Window403 == 0 {
		cfg.Window403 = 10 * time.Minute
	}
	if cfg.Max403 == 0 {
		cfg.Max403 = 3
	}
	return &Governor{cfg: cfg}
}

func (g *Governor) state(domain string) *domainState {
	floor := time.Duration(g.cfg.FloorMS) * time.Millisecond
	ceiling := time.Duration(g.cfg.CeilingMS) * time.Millisecond
	v, _ := g.domains.LoadOrStore(domain, &domainState{
		currentDelay: floor,
		bo:           newBackoff(floor, ceiling),
	})
	return v.(*domainState)
}

// Domain extracts the host name (without port) from a URL for use as the
// governor's sharding key. Subdomains are not folded into their
// registrable domain: foia.example.gov and example.gov are separate keys.
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// Wait blocks until domain's cooldown has elapsed, or ctx is cancelled.
// The sleep is interruptible per spec.md §5's cancellation requirement.
func (g *Governor) Wait(ctx context.Context, domain string) error {
	st := g.state(domain)

	st.mu.Lock()
	var wait time.Duration
	if !st.lastRequest.IsZero() {
		elapsed := time.Since(st.lastRequest)
		if elapsed < st.currentDelay {
			wait = st.currentDelay - elapsed
		}
	}
	metrics.GovernorDelayMS.WithLabelValues(domain).Observe(float64(st.currentDelay.Milliseconds()))
	st.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome classifies one completed fetch attempt for Report.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeThrottled        // 429
	OutcomeForbidden        // 403, counted against the 403-pattern window
)

// Report records one fetch attempt's outcome and adjusts domain's delay.
// Success decreases the delay geometrically toward the floor; Throttled or
// a 403-pattern multiplies it toward the ceiling and sets in_backoff.
func (g *Governor) Report(domain string, outcome Outcome) {
	st := g.state(domain)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.lastRequest = time.Now()
	st.totalRequests++

	switch outcome {
	case OutcomeSuccess:
		st.inBackoff = false
		floor := time.Duration(g.cfg.FloorMS) * time.Millisecond
		st.currentDelay = st.currentDelay * 8 / 10
		if st.currentDelay < floor {
			st.currentDelay = floor
		}
		st.bo.InitialInterval = floor
		st.bo.Reset()
	case OutcomeThrottled:
		g.backoff(st, domain)
	case OutcomeForbidden:
		now := time.Now()
		st.recent403 = append(st.recent403, now)
		cutoff := now.Add(-g.cfg.Window403)
		pruned := st.recent403[:0]
		for _, t := range st.recent403 {
			if t.After(cutoff) {
				pruned = append(pruned, t)
			}
		}
		st.recent403 = pruned
		if len(st.recent403) >= g.cfg.Max403 {
			g.backoff(st, domain)
		}
	}
}

// backoff must be called with st.mu held. It calls NextBackOff on the
// domain's persistent backoff instance, so repeated throttled outcomes
// compound the delay (double, double, double, ...) instead of each
// recomputing from scratch.
func (g *Governor) backoff(st *domainState, domain string) {
	st.inBackoff = true
	st.totalThrottled++

	ceiling := time.Duration(g.cfg.CeilingMS) * time.Millisecond
	// NextBackOff returns the seeded interval before advancing it, so the
	// multiplier is applied here: every throttle step, including the first
	// after a reset or restore, multiplies the delay it was seeded from.
	next := st.bo.NextBackOff()
	if next != backoff.Stop {
		next = time.Duration(float64(next) * st.bo.Multiplier)
	}
	if next == backoff.Stop || next > ceiling {
		next = ceiling
	}
	st.currentDelay = next

	metrics.GovernorBackoffTotal.WithLabelValues(domain).Inc()
}

// Snapshot reports a domain's current counters for persistence into
// store.RateLimitState between process runs.
type Snapshot struct {
	CurrentDelayMS       int64
	LastRequestAt        *int64
	InBackoff            bool
	TotalRequests        int64
	TotalThrottled       int64
}

func (g *Governor) Snapshot(domain string) Snapshot {
	st := g.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()

	snap := Snapshot{
		CurrentDelayMS: st.currentDelay.Milliseconds(),
		InBackoff:      st.inBackoff,
		TotalRequests:  st.totalRequests,
		TotalThrottled: st.totalThrottled,
	}
	if !st.lastRequest.IsZero() {
		v := st.lastRequest.Unix()
		snap.LastRequestAt = &v
	}
	return snap
}

// Restore seeds a domain's state from a persisted snapshot, used at
// startup to resume governor state across process restarts.
func (g *Governor) Restore(domain string, currentDelayMS int64, lastRequestAt *int64, inBackoff bool, totalRequests, totalThrottled int64) {
	st := g.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.currentDelay = time.Duration(currentDelayMS) * time.Millisecond
	st.inBackoff = inBackoff
	st.totalRequests = totalRequests
	st.totalThrottled = totalThrottled
	if lastRequestAt != nil {
		st.lastRequest = time.Unix(*lastRequestAt, 0)
	}

	// Reseed the persistent backoff so the next Report(Throttled) compounds
	// forward from the restored delay rather than the floor.
	ceiling := time.Duration(g.cfg.CeilingMS) * time.Millisecond
	st.bo.InitialInterval = st.currentDelay
	st.bo.Reset()
	st.bo.MaxInterval = ceiling
}
