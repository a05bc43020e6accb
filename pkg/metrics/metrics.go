package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Campaign pipeline metrics
	EmailsSent        prometheus.Counter
	EmailsFailed      prometheus.Counter
	EmailsSuppressed  prometheus.Counter
	BouncesRecorded   *prometheus.CounterVec
	CampaignsPaused   prometheus.Counter
	CampaignsFinished prometheus.Counter

	// Task queue metrics
	TasksProcessed        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TaskProcessingLatency prometheus.Histogram
	TaskRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		EmailsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emails_sent_total",
			Help:      "Total number of campaign emails delivered to the transport",
		}),
		EmailsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emails_failed_total",
			Help:      "Total number of campaign emails that failed delivery",
		}),
		EmailsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "emails_suppressed_total",
			Help:      "Total number of recipients skipped due to unsubscribe or bounce history",
		}),
		BouncesRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bounces_recorded_total",
			Help:      "Bounce notifications ingested, by classification",
		}, []string{"type"}),
		CampaignsPaused: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "campaigns_paused_total",
			Help:      "Campaigns paused by daily quota exhaustion",
		}),
		CampaignsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "campaigns_finished_total",
			Help:      "Campaigns that reached the sent state",
		}),
		TasksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_processed_total",
			Help:      "Scheduled tasks processed successfully, by kind",
		}, []string{"kind"}),
		TasksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_failed_total",
			Help:      "Scheduled tasks that exhausted their retries, by kind",
		}, []string{"kind"}),
		TaskProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_processing_duration_seconds",
			Help:      "Time spent processing scheduled tasks",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		TaskRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_retry_attempts_total",
			Help:      "Scheduled task retry attempts, by kind",
		}, []string{"kind"}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Database operations, by operation and outcome",
		}, []string{"operation", "status"}),
		DatabaseLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Database operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
