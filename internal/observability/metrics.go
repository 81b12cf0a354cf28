package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for dataset
// loading and the dashboard API.
type Metrics struct {
	DatasetLoads          *prometheus.CounterVec // labels: format={csv,xlsx,yaml,unknown}, outcome={success,error}
	ConsistencyMismatches prometheus.Counter
	LoadDuration          prometheus.Histogram

	// Gauges describing the snapshot currently served.
	MonthsLoaded         prometheus.Gauge
	DatasetValid         prometheus.Gauge
	LatestTotalLoss      prometheus.Gauge
	LatestLossPercentage prometheus.Gauge

	// View cache metrics.
	ViewCache *prometheus.CounterVec // labels: view, result={hit,miss}

	// Balance publishing metrics.
	BalancesPublished prometheus.Counter
	PublishErrors     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewMetricsForTesting()
	prometheus.MustRegister(
		m.DatasetLoads,
		m.ConsistencyMismatches,
		m.LoadDuration,
		m.MonthsLoaded,
		m.DatasetValid,
		m.LatestTotalLoss,
		m.LatestLossPercentage,
		m.ViewCache,
		m.BalancesPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "water_balance",
			Name:      "dataset_loads_total",
			Help:      "Dataset loads by source format and outcome.",
		}, []string{"format", "outcome"}),
		ConsistencyMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "water_balance",
			Name:      "consistency_mismatches_total",
			Help:      "Derived fields in loaded data that disagreed with their primary fields.",
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "water_balance",
			Name:      "load_duration_seconds",
			Help:      "Duration of a parse-recompute-validate-publish cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		MonthsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "water_balance",
			Name:      "months_loaded",
			Help:      "Number of monthly periods in the served dataset.",
		}),
		DatasetValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "water_balance",
			Name:      "dataset_valid",
			Help:      "1 when the served dataset was loaded without consistency warnings.",
		}),
		LatestTotalLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "water_balance",
			Name:      "latest_total_loss_cubic_meters",
			Help:      "Total loss (L1 - L3) of the latest month in the served dataset.",
		}),
		LatestLossPercentage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "water_balance",
			Name:      "latest_loss_percentage",
			Help:      "Total loss of the latest month as a percentage of L1.",
		}),
		ViewCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "water_balance",
			Name:      "view_cache_total",
			Help:      "View cache lookups by view and result.",
		}, []string{"view", "result"}),
		BalancesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "water_balance",
			Name:      "balances_published_total",
			Help:      "Monthly balance messages written to the balance topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "water_balance",
			Name:      "publish_errors_total",
			Help:      "Failed balance publish attempts.",
		}),
	}
}
