package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Valuation metrics
	Valuations        *prometheus.CounterVec
	ValuationDuration prometheus.Histogram

	// XIRR metrics
	XIRRResults    *prometheus.CounterVec
	XIRRIterations prometheus.Histogram

	// Holding metrics
	HoldingWrites *prometheus.CounterVec

	// Reconciliation metrics
	ReconciliationRuns    prometheus.Counter
	ReconciliationEntries *prometheus.CounterVec

	// Price cache metrics
	PriceCache *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBErrors  *prometheus.CounterVec
	DBRetries prometheus.Counter
}

// New creates all Prometheus metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Valuation metrics
		Valuations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goportfolio_valuations_total",
				Help: "Total position valuations by pricing model and result",
			},
			[]string{"pricing_model", "result"},
		),
		ValuationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "goportfolio_valuation_duration_seconds",
			Help:    "Duration of a position valuation including data loading",
			Buckets: prometheus.DefBuckets,
		}),

		// XIRR metrics
		XIRRResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goportfolio_xirr_results_total",
				Help: "XIRR computations by scope and outcome",
			},
			[]string{"scope", "result"},
		),
		XIRRIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "goportfolio_xirr_iterations",
			Help:    "Refinement iterations needed by converged XIRR computations",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 100},
		}),

		// Holding metrics
		HoldingWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goportfolio_holding_writes_total",
				Help: "Holding mutations by operation",
			},
			[]string{"operation"},
		),

		// Reconciliation metrics
		ReconciliationRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "goportfolio_reconciliation_runs_total",
			Help: "Total reconciliation runs",
		}),
		ReconciliationEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goportfolio_reconciliation_entries_total",
				Help: "Reconciliation entries by status",
			},
			[]string{"status"},
		),

		// Price cache metrics
		PriceCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goportfolio_price_cache_total",
				Help: "Price cache lookups by result",
			},
			[]string{"result"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goportfolio_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goportfolio_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goportfolio_db_errors_total",
				Help: "PostgreSQL errors seen by retried operations, by SQLSTATE",
			},
			[]string{"code"},
		),
		DBRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "goportfolio_db_retries_total",
			Help: "Total retried database operations",
		}),
	}
}
