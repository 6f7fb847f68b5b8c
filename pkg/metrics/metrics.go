package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by method (local|google|facebook) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecourse_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	// ActiveSessions tracks live session rows (not expired or logged out).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codecourse_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// VerificationCodes counts issued and redeemed one-time codes by kind (email|phone) and outcome.
	VerificationCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecourse_verification_codes_total",
			Help: "Verification codes issued and redeemed",
		},
		[]string{"kind", "outcome"},
	)

	// EmailsDispatched counts outbound emails by result (sent|failed|disabled).
	EmailsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecourse_emails_dispatched_total",
			Help: "Outbound email dispatch attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codecourse_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
