package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all reminder pipeline metrics
type Metrics struct {
	// Pass related metrics
	PassesTotal       *prometheus.CounterVec
	PassDuration      prometheus.Histogram
	PassInProgress    prometheus.Gauge
	LastPassTimestamp prometheus.Gauge
	PassRejected      prometheus.Counter

	// Reminder metrics
	RemindersSent        *prometheus.CounterVec
	RemindersFailed      *prometheus.CounterVec
	SubscriptionsSkipped *prometheus.CounterVec

	// Store metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// New creates metrics registered on reg. Tests pass a fresh prometheus.NewRegistry()
// so repeated construction does not panic on duplicate registration.
func New(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PassesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "passes_total",
			Help:      "Total number of reminder passes by outcome",
		}, []string{"status"}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pass_duration_seconds",
			Help:      "Time spent running a full reminder pass",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		PassInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pass_in_progress",
			Help:      "1 while a reminder pass is running",
		}),
		LastPassTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_pass_completed_timestamp_seconds",
			Help:      "Unix time of the last completed reminder pass",
		}),
		PassRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "passes_rejected_total",
			Help:      "Triggers rejected because a pass was already running",
		}),

		RemindersSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_sent_total",
			Help:      "Reminders delivered, by event kind",
		}, []string{"kind"}),
		RemindersFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reminders_failed_total",
			Help:      "Reminders whose delivery failed, by event kind",
		}, []string{"kind"}),
		SubscriptionsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscriptions_skipped_total",
			Help:      "Subscriptions skipped during a pass, by reason",
		}, []string{"reason"}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}
