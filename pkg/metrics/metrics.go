package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinsora_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// OTPSends counts OTP delivery attempts by flow (signup|login) and result (success|failure).
	OTPSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinsora_otp_sends_total",
			Help: "Total number of OTP delivery attempts",
		},
		[]string{"flow", "result"},
	)

	// ExpiredChallenges counts pending challenges removed by the background reclaimer.
	ExpiredChallenges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coinsora_expired_challenges_total",
			Help: "Pending OTP challenges removed after expiry",
		},
	)

	// CatalogReloads counts workbook re-parses triggered by a stale cache.
	CatalogReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coinsora_catalog_reloads_total",
			Help: "Catalog cache regenerations from the workbook",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinsora_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
