package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainExtractsHostname(t *testing.T) {
	d, err := Domain("https://foia.example.gov/records?id=1")
	require.NoError(t, err)
	assert.Equal(t, "foia.example.gov", d)
}

func TestWaitNoDelayOnFirstRequest(t *testing.T) {
	g := New(Config{FloorMS: 100, CeilingMS: 60000})
	start := time.Now()
	err := g.Wait(t.Context(), "example.gov")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitRespectsCurrentDelay(t *testing.T) {
	g := New(Config{FloorMS: 50, CeilingMS: 60000})
	require.NoError(t, g.Wait(t.Context(), "example.gov"))
	g.Report("example.gov", OutcomeSuccess)

	start := time.Now()
	require.NoError(t, g.Wait(t.Context(), "example.gov"))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitCancelledByContext(t *testing.T) {
	g := New(Config{FloorMS: 10000, CeilingMS: 60000})
	require.NoError(t, g.Wait(t.Context(), "example.gov"))
	g.Report("example.gov", OutcomeSuccess)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Millisecond)
	defer cancel()
	err := g.Wait(ctx, "example.gov")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReportSuccessDecaysTowardFloor(t *testing.T) {
	g := New(Config{FloorMS: 100, CeilingMS: 60000})
	g.Report("example.gov", OutcomeThrottled)
	before := g.Snapshot("example.gov").CurrentDelayMS

	g.Report("example.gov", OutcomeSuccess)
	after := g.Snapshot("example.gov").CurrentDelayMS

	assert.Less(t, after, before)
	assert.GreaterOrEqual(t, after, int64(100))
}

func TestReportThrottledEntersBackoff(t *testing.T) {
	g := New(Config{FloorMS: 100, CeilingMS: 60000})
	g.Report("example.gov", OutcomeThrottled)

	snap := g.Snapshot("example.gov")
	assert.True(t, snap.InBackoff)
	assert.Equal(t, int64(1), snap.TotalThrottled)
	assert.Greater(t, snap.CurrentDelayMS, int64(100))
}

func TestReportThrottledCompoundsAcrossCalls(t *testing.T) {
	g := New(Config{FloorMS: 100, CeilingMS: 60000})
	g.Report("example.gov", OutcomeThrottled)
	first := g.Snapshot("example.gov").CurrentDelayMS

	g.Report("example.gov", OutcomeThrottled)
	second := g.Snapshot("example.gov").CurrentDelayMS

	assert.Greater(t, second, first, "a second throttle must multiply the delay further, not repeat the first backoff step")
}

func TestReportForbiddenPatternTriggersBackoff(t *testing.T) {
	g := New(Config{FloorMS: 100, CeilingMS: 60000, Window403: time.Minute, Max403: 3})

	g.Report("example.gov", OutcomeForbidden)
	g.Report("example.gov", OutcomeForbidden)
	assert.False(t, g.Snapshot("example.gov").InBackoff)

	g.Report("example.gov", OutcomeForbidden)
	assert.True(t, g.Snapshot("example.gov").InBackoff)
}

func TestSnapshotAndRestoreRoundTrip(t *testing.T) {
	g := New(Config{FloorMS: 100, CeilingMS: 60000})
	g.Report("example.gov", OutcomeThrottled)
	snap := g.Snapshot("example.gov")

	g2 := New(Config{FloorMS: 100, CeilingMS: 60000})
	g2.Restore("example.gov", snap.CurrentDelayMS, snap.LastRequestAt, snap.InBackoff, snap.TotalRequests, snap.TotalThrottled)

	restored := g2.Snapshot("example.gov")
	assert.Equal(t, snap.CurrentDelayMS, restored.CurrentDelayMS)
	assert.Equal(t, snap.InBackoff, restored.InBackoff)
	assert.Equal(t, snap.TotalRequests, restored.TotalRequests)
	assert.Equal(t, snap.TotalThrottled, restored.TotalThrottled)
}

func TestDomainsAreIndependent(t *testing.T) {
	g := New(Config{FloorMS: 100, CeilingMS: 60000})
	g.Report("a.gov", OutcomeThrottled)

	assert.True(t, g.Snapshot("a.gov").InBackoff)
	assert.False(t, g.Snapshot("b.gov").InBackoff)
}
