package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsIngested prometheus.Counter
	TransactionsRejected *prometheus.CounterVec
	TransactionsDeleted  prometheus.Counter
	DatabaseRetries      *prometheus.CounterVec

	// Recompute metrics
	RecomputeTasks           *prometheus.CounterVec
	RecomputeDuration        prometheus.Histogram
	RecomputeEnqueueFailures prometheus.Counter
	TaskQueueDepth           *prometheus.GaugeVec

	// Cache metrics
	StatisticsCacheLookups *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Transaction metrics
		TransactionsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "txstats_transactions_ingested_total",
			Help: "Total number of transactions stored",
		}),
		TransactionsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txstats_transactions_rejected_total",
				Help: "Total number of rejected transactions by reason",
			},
			[]string{"reason"},
		),
		TransactionsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "txstats_transactions_deleted_total",
			Help: "Total number of transactions removed by delete-all",
		}),
		DatabaseRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txstats_database_retries_total",
				Help: "Database transactions re-run after an abort, by SQLSTATE",
			},
			[]string{"sqlstate"},
		),

		// Recompute metrics
		RecomputeTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txstats_recompute_tasks_total",
				Help: "Recompute task attempts by resulting state",
			},
			[]string{"state"},
		),
		RecomputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txstats_recompute_duration_seconds",
			Help:    "Duration of statistics recompute attempts",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		RecomputeEnqueueFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "txstats_recompute_enqueue_failures_total",
			Help: "Total number of recompute tasks that could not be enqueued",
		}),
		TaskQueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "txstats_task_queue_depth",
				Help: "Number of recompute tasks per queue section",
			},
			[]string{"section"},
		),

		// Cache metrics
		StatisticsCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txstats_statistics_cache_lookups_total",
				Help: "Statistics cache lookups by result",
			},
			[]string{"result"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txstats_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txstats_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "txstats_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		// Authentication metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txstats_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "txstats_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		}),
	}
}
