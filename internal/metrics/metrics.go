package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks engine runs by outcome (ok, failed, locked)
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_runs_total",
			Help: "Total number of notification engine runs",
		},
		[]string{"outcome"},
	)

	// RunDuration tracks wall time of a full run
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_engine_run_duration_seconds",
			Help:    "Notification engine run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// CandidatesTotal tracks customers found eligible per rule
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_candidates_total",
			Help: "Total number of candidates produced by trigger evaluators",
		},
		[]string{"type"},
	)

	// NotificationsSent tracks the total number of notifications sent
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_sent_total",
			Help: "Total number of notifications sent",
		},
		[]string{"type"},
	)

	// FailedNotifications tracks dispatch failures
	FailedNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_failed_total",
			Help: "Total number of failed notifications",
		},
		[]string{"type"},
	)

	// SuppressedNotifications tracks candidates skipped by the dedup guard
	SuppressedNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_suppressed_total",
			Help: "Total number of candidates suppressed by send history",
		},
		[]string{"type"},
	)

	// DispatchDuration tracks transport latency
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_engine_dispatch_duration_seconds",
			Help:    "Notification dispatch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// SMTPConnectionPool tracks the number of idle SMTP connections in the pool
	SMTPConnectionPool = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_engine_smtp_connections",
			Help: "Number of idle SMTP connections in the pool",
		},
	)

	// RateLimitExceeded tracks rejected trigger requests
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"client"},
	)
)

// EmailBounces tracks bounce and complaint events reported by the provider
var EmailBounces = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notification_engine_email_bounces_total",
		Help: "Total number of email bounce events",
	},
	[]string{"type"}, // hard, soft, complaint
)
