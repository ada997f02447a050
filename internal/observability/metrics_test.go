package observability

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RecordsInserted.WithLabelValues("realtime").Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.RecordsInserted.WithLabelValues("realtime")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecordsInserted.WithLabelValues("realtime")))
}

func TestNewMetricsForTesting_MatchesRegisteredShape(t *testing.T) {
	m := NewMetricsForTesting()

	reg := prometheus.NewPedanticRegistry()
	for _, c := range m.collectors() {
		require.NoError(t, reg.Register(c))
	}

	m.GDDSweeps.WithLabelValues("success").Inc()
	expected := `
# HELP weather_gdd_gdd_sweeps_total GDD threshold sweeps by outcome.
# TYPE weather_gdd_gdd_sweeps_total counter
weather_gdd_gdd_sweeps_total{outcome="success"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.GDDSweeps, strings.NewReader(expected), "weather_gdd_gdd_sweeps_total"))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
