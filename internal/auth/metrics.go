package auth

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AuthMetrics holds Prometheus metrics for identity resolution.
type AuthMetrics struct {
	resolutions      *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	revocations      prometheus.Counter
}

var (
	authMetricsInstance *AuthMetrics
	authMetricsOnce     sync.Once
)

// GetAuthMetrics returns the singleton auth metrics instance.
func GetAuthMetrics() *AuthMetrics {
	authMetricsOnce.Do(func() {
		authMetricsInstance = newAuthMetrics()
	})
	return authMetricsInstance
}

func newAuthMetrics() *AuthMetrics {
	return &AuthMetrics{
		resolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "auth",
				Name:      "resolutions_total",
				Help:      "Identity resolution outcomes",
			},
			[]string{"result"},
		),
		providerRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "auth",
				Name:      "provider_requests_total",
				Help:      "Identity provider call outcomes",
			},
			[]string{"outcome"},
		),
		revocations: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "auth",
				Name:      "revocations_total",
				Help:      "Tokens revoked through the gateway",
			},
		),
	}
}
