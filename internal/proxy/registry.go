package proxy

import (
	"sync"

	"github.com/yoku-app/gateway/internal/config"
	"github.com/yoku-app/gateway/internal/observability"
)

// Registry holds the forwarders for all configured backend services and
// supports atomic rebuild on configuration reload.
type Registry struct {
	logger observability.Logger

	mu         sync.RWMutex
	forwarders map[string]*Forwarder
}

// NewRegistry creates a registry populated from configuration.
func NewRegistry(services []config.Service, logger observability.Logger) (*Registry, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	r := &Registry{logger: logger}
	if err := r.Rebuild(services); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the forwarder for a service name.
func (r *Registry) Get(name string) (*Forwarder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forwarders[name]
	return f, ok
}

// Rebuild replaces all forwarders. Existing forwarders are reused when the
// upstream URL is unchanged so their circuit breaker state survives a
// reload.
func (r *Registry) Rebuild(services []config.Service) error {
	r.mu.RLock()
	previous := r.forwarders
	r.mu.RUnlock()

	next := make(map[string]*Forwarder, len(services))
	for _, svc := range services {
		if prev, ok := previous[svc.Name]; ok && prev.target.String() == svc.URL {
			next[svc.Name] = prev
			continue
		}

		f, err := NewForwarder(svc.Name, svc.URL, WithForwarderLogger(r.logger))
		if err != nil {
			return err
		}
		next[svc.Name] = f

		r.logger.Info("registered backend service",
			observability.String("service", svc.Name),
			observability.String("url", svc.URL))
	}

	r.mu.Lock()
	r.forwarders = next
	r.mu.Unlock()

	return nil
}
