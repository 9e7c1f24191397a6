package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the ingestion pipeline.
type Metrics struct {
	CyclesTotal   prometheus.Counter
	CycleDuration prometheus.Histogram
	AdaptErrors   prometheus.Counter

	// FetchErrors counts per-airport fetch failures by kind
	// (no_data, timeout, exhausted_retries, client_request, other).
	FetchErrors *prometheus.CounterVec

	// AirportsByCategory tracks the current cycle's rating distribution.
	AirportsByCategory *prometheus.GaugeVec
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.AdaptErrors,
		m.FetchErrors,
		m.AirportsByCategory,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so parallel
// tests do not trip duplicate-registration panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sectional",
			Name:      "cycles_total",
			Help:      "Total completed ingestion cycles.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sectional",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a complete fetch-adapt-classify cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		AdaptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sectional",
			Name:      "adapt_errors_total",
			Help:      "Reports that could not be parsed as structured data.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sectional",
			Name:      "fetch_errors_total",
			Help:      "Per-airport fetch failures by kind.",
		}, []string{"kind"}),
		AirportsByCategory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sectional",
			Name:      "airports_by_category",
			Help:      "Airports in the latest cycle by flight category.",
		}, []string{"category"}),
	}
}
