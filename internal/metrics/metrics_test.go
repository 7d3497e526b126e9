package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryCollectsIncrements(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)

	FetchTotal.WithLabelValues(FetchNew).Inc()
	GovernorBackoffTotal.WithLabelValues("example.gov").Inc()
	GovernorDelayMS.WithLabelValues("example.gov").Observe(250)
	AnnotationsTotal.WithLabelValues("ocr", "success").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(FetchTotal.WithLabelValues(FetchNew)))
	assert.Equal(t, float64(1), testutil.ToFloat64(GovernorBackoffTotal.WithLabelValues("example.gov")))
	assert.Equal(t, float64(1), testutil.ToFloat64(AnnotationsTotal.WithLabelValues("ocr", "success")))
}

func TestNewRegistryIsFreshEachCall(t *testing.T) {
	// Each call must register successfully without panicking on duplicate
	// collector registration, since callers construct one per test case.
	assert.NotPanics(t, func() {
		NewRegistry()
		NewRegistry()
	})
}
