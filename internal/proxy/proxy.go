// Package proxy forwards gateway requests to backend services, relaying
// the upstream's status, headers, and body verbatim.
package proxy

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yoku-app/gateway/internal/apierror"
	"github.com/yoku-app/gateway/internal/observability"
)

// hopHeaders are headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder relays requests to a single backend service.
type Forwarder struct {
	name      string
	target    *url.URL
	transport http.RoundTripper
	logger    observability.Logger
}

// ForwarderOption is a functional option for configuring a Forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger.
func WithForwarderLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithTransport sets the transport. Used in tests and by the circuit
// breaker wrapper.
func WithTransport(transport http.RoundTripper) ForwarderOption {
	return func(f *Forwarder) {
		f.transport = transport
	}
}

// NewForwarder creates a Forwarder for a backend service. By default the
// upstream transport is wrapped in a per-service circuit breaker.
func NewForwarder(name, rawURL string, opts ...ForwarderOption) (*Forwarder, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, apierror.Operation("invalid upstream URL for service "+name, apierror.WithCause(err))
	}

	f := &Forwarder{
		name:   name,
		target: target,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.transport == nil {
		f.transport = newBreakerTransport(name, http.DefaultTransport, f.logger)
	}

	return f, nil
}

// Name returns the backend service name.
func (f *Forwarder) Name() string {
	return f.name
}

// Forward relays the request upstream and writes the upstream response
// (status, headers, body) to w unmodified. strip, when non-empty, is the
// route prefix removed from the path before joining the upstream base path.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, strip string) error {
	start := time.Now()

	outReq, err := f.buildRequest(r, strip)
	if err != nil {
		return err
	}

	resp, err := f.transport.RoundTrip(outReq)
	if err != nil {
		GetProxyMetrics().errorsTotal.WithLabelValues(f.name).Inc()
		return translateTransportError(f.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Headers are already on the wire; nothing useful can be sent.
		f.logger.Warn("response relay interrupted",
			observability.String("service", f.name),
			observability.Error(err))
	}

	GetProxyMetrics().requestsTotal.WithLabelValues(f.name, statusClass(resp.StatusCode)).Inc()
	GetProxyMetrics().requestDuration.WithLabelValues(f.name).Observe(time.Since(start).Seconds())

	return nil
}

// Do executes an upstream request built from scratch and returns the
// response for handlers that compose upstream calls. Non-2xx responses are
// returned as-is; callers decide whether to pass them through.
func (f *Forwarder) Do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	u := *f.target
	u.Path = joinPath(u.Path, path)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, apierror.Operation("build upstream request", apierror.WithCause(err))
	}
	for key, values := range header {
		req.Header[key] = values
	}

	resp, err := f.transport.RoundTrip(req)
	if err != nil {
		GetProxyMetrics().errorsTotal.WithLabelValues(f.name).Inc()
		return nil, translateTransportError(f.name, err)
	}
	return resp, nil
}

// buildRequest constructs the outbound request from the inbound one.
func (f *Forwarder) buildRequest(r *http.Request, strip string) (*http.Request, error) {
	path := r.URL.Path
	if strip != "" {
		path = strings.TrimPrefix(path, strip)
	}

	u := *f.target
	u.Path = joinPath(f.target.Path, path)
	u.RawQuery = r.URL.RawQuery

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), r.Body)
	if err != nil {
		return nil, apierror.Operation("build upstream request", apierror.WithCause(err))
	}

	outReq.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		outReq.Header.Del(h)
	}

	if clientIP := remoteIP(r); clientIP != "" {
		appendForwardedFor(outReq.Header, clientIP)
	}
	outReq.Header.Set("X-Forwarded-Host", r.Host)
	outReq.Header.Set("X-Forwarded-Proto", forwardedProto(r))

	return outReq, nil
}

// copyHeader copies upstream headers to the response, skipping hop-by-hop
// headers.
func copyHeader(dst, src http.Header) {
	for key, values := range src {
		if isHopHeader(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// joinPath joins a base path and a request path with a single slash.
func joinPath(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if path == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// remoteIP extracts the client IP from RemoteAddr.
func remoteIP(r *http.Request) string {
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx > 0 {
		return addr[:idx]
	}
	return addr
}

// appendForwardedFor appends the client IP to X-Forwarded-For.
func appendForwardedFor(header http.Header, clientIP string) {
	if prior := header.Get("X-Forwarded-For"); prior != "" {
		header.Set("X-Forwarded-For", prior+", "+clientIP)
		return
	}
	header.Set("X-Forwarded-For", clientIP)
}

// forwardedProto returns the scheme the client used.
func forwardedProto(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// statusClass buckets a status code for metrics labels.
func statusClass(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
