package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_gdd"

// Metrics holds the Prometheus collectors for ingestion, climate imports and
// GDD analysis.
type Metrics struct {
	// Station API ingestion.
	IngestionRuns     *prometheus.CounterVec // labels: outcome={success,error}
	IngestionDuration prometheus.Histogram
	LastUpdate        prometheus.Gauge

	// Records by source={realtime,climate}.
	RecordsInserted *prometheus.CounterVec
	RecordsSkipped  *prometheus.CounterVec // labels: source, reason={invalid,other_station,bad_day,duplicate}

	// Upstream fetch.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,error}
	FetchDuration prometheus.Histogram

	ClimateImports *prometheus.CounterVec // labels: outcome={success,error}
	GDDSweeps      *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IngestionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_runs_total",
			Help:      "Station API ingestion runs by outcome.",
		}, []string{"outcome"}),
		IngestionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Duration of a complete fetch-parse-store ingestion run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		LastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last successful realtime store write.",
		}),
		RecordsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_inserted_total",
			Help:      "Observation records newly stored, by source.",
		}, []string{"source"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Observation records not stored, by source and reason.",
		}, []string{"source", "reason"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Station API fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Station API request duration in seconds, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		ClimateImports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "climate_imports_total",
			Help:      "Climate CSV files processed by outcome.",
		}, []string{"outcome"}),
		GDDSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gdd_sweeps_total",
			Help:      "GDD threshold sweeps by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.IngestionRuns,
		m.IngestionDuration,
		m.LastUpdate,
		m.RecordsInserted,
		m.RecordsSkipped,
		m.FetchRequests,
		m.FetchDuration,
		m.ClimateImports,
		m.GDDSweeps,
	}
}

// Outcome maps an error to the "outcome" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
