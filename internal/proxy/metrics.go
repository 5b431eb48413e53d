package proxy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProxyMetrics holds Prometheus metrics for upstream forwarding.
type ProxyMetrics struct {
	requestsTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
}

var (
	proxyMetricsInstance *ProxyMetrics
	proxyMetricsOnce     sync.Once
)

// GetProxyMetrics returns the singleton proxy metrics instance.
func GetProxyMetrics() *ProxyMetrics {
	proxyMetricsOnce.Do(func() {
		proxyMetricsInstance = newProxyMetrics()
	})
	return proxyMetricsInstance
}

func newProxyMetrics() *ProxyMetrics {
	return &ProxyMetrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Upstream responses relayed, by status class",
			},
			[]string{"service", "status_class"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "errors_total",
				Help:      "Upstream transport failures",
			},
			[]string{"service"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "request_duration_seconds",
				Help:      "Duration of upstream requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Subsystem: "proxy",
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"service"},
		),
	}
}
