package proxy

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yoku-app/gateway/internal/apierror"
	"github.com/yoku-app/gateway/internal/observability"
)

// breakerRequestThreshold is the minimum sample size before the breaker
// can trip; it doubles as the half-open request cap.
const breakerRequestThreshold = 5

// breakerTimeout is how long the breaker stays open before probing.
const breakerTimeout = 30 * time.Second

// breakerTransport wraps an http.RoundTripper with a per-service circuit
// breaker. Only transport-level failures count against the breaker; an
// upstream that responds with any status at all is up.
type breakerTransport struct {
	name string
	base http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

// newBreakerTransport creates a circuit-breaker-wrapped transport.
func newBreakerTransport(name string, base http.RoundTripper, logger observability.Logger) *breakerTransport {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerRequestThreshold,
		Interval:    breakerTimeout,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerRequestThreshold && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				observability.String("service", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()))
			GetProxyMetrics().breakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	}

	return &breakerTransport{
		name: name,
		base: base,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := t.cb.Execute(func() (interface{}, error) {
		return t.base.RoundTrip(req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// translateTransportError converts an upstream transport failure into a
// classified error. The upstream's own responses are never translated here;
// they are relayed verbatim.
func translateTransportError(service string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apierror.Operation(
			"service "+service+" is temporarily unavailable",
			apierror.WithCause(err),
		)
	}
	return apierror.Operation(
		"failed to reach service "+service,
		apierror.WithCause(err),
	)
}

// breakerStateValue maps a breaker state to a gauge value.
func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
