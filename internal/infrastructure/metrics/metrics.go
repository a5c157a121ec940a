package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the orchestrator
type Metrics struct {
	// Authentication metrics
	LoginsTotal   prometheus.Counter
	LoginFailures *prometheus.CounterVec

	// Message metrics
	MessagesSent   prometheus.Counter
	MessagesFailed prometheus.Counter

	// Account metrics
	LiveConnections prometheus.Gauge
	TotalAccounts   prometheus.Gauge

	// Batch metrics
	BatchItemsTotal  prometheus.Counter
	BatchPassesTotal prometheus.Counter

	// Scheduler metrics
	ScheduleRunsTotal prometheus.Counter
	ScheduleDuration  prometheus.Histogram

	// Proxy metrics
	ProxyTestsTotal  *prometheus.CounterVec
	ProxyTestLatency prometheus.Histogram
}

// NewMetrics creates a Metrics instance registered against reg. Taking the
// registerer instead of using the default registry keeps repeated
// construction (tests, fx re-wiring) from panicking on double registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LoginsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tgfleet_logins_total",
			Help: "Total number of successful account logins",
		}),
		LoginFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgfleet_login_failures_total",
				Help: "Total number of failed login attempts",
			},
			[]string{"kind"},
		),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "tgfleet_messages_sent_total",
			Help: "Total number of messages sent across all accounts",
		}),
		MessagesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tgfleet_messages_failed_total",
			Help: "Total number of message send failures",
		}),
		LiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tgfleet_live_connections",
			Help: "Current number of live account connections",
		}),
		TotalAccounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tgfleet_total_accounts",
			Help: "Total number of registered accounts",
		}),
		BatchItemsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tgfleet_batch_items_total",
			Help: "Total number of per-account items processed by batch passes",
		}),
		BatchPassesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tgfleet_batch_passes_total",
			Help: "Total number of batch fan-out passes",
		}),
		ScheduleRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tgfleet_schedule_runs_total",
			Help: "Total number of executed schedule passes",
		}),
		ScheduleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tgfleet_schedule_duration_seconds",
			Help:    "Duration of schedule passes in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ProxyTestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgfleet_proxy_tests_total",
				Help: "Total number of proxy connectivity tests",
			},
			[]string{"outcome"},
		),
		ProxyTestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tgfleet_proxy_test_latency_seconds",
			Help:    "Latency of proxy connectivity tests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
