// Package router maps gateway request paths to backend services.
package router

import (
	"sort"
	"strings"
	"sync"

	"github.com/yoku-app/gateway/internal/config"
)

// Route maps a path prefix to a backend service.
type Route struct {
	// Prefix is the anchored path prefix this route matches.
	Prefix string

	// Service is the name of the backend service to forward to.
	Service string

	// StripPrefix removes the matched prefix before forwarding.
	StripPrefix bool
}

// Table is the route table. Lookup is longest-prefix match; the table can
// be swapped atomically for configuration reloads.
type Table struct {
	mu     sync.RWMutex
	routes []Route
}

// NewTable creates a route table from configuration.
func NewTable(routes []config.Route) *Table {
	t := &Table{}
	t.Swap(routes)
	return t
}

// Swap replaces the route table. In-flight matches continue against the
// table they started with.
func (t *Table) Swap(routes []config.Route) {
	next := make([]Route, 0, len(routes))
	for _, r := range routes {
		next = append(next, Route{
			Prefix:      strings.TrimSuffix(r.Prefix, "/"),
			Service:     r.Service,
			StripPrefix: r.StripPrefix,
		})
	}

	// Longest prefix first so Match can return the first hit.
	sort.SliceStable(next, func(i, j int) bool {
		return len(next[i].Prefix) > len(next[j].Prefix)
	})

	t.mu.Lock()
	t.routes = next
	t.mu.Unlock()
}

// Match returns the route for a request path, if any. A prefix matches only
// on a path-segment boundary: /api/user matches /api/user and
// /api/user/123 but not /api/username.
func (t *Table) Match(path string) (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, route := range t.routes {
		if matchesPrefix(path, route.Prefix) {
			return route, true
		}
	}
	return Route{}, false
}

// matchesPrefix reports whether path falls under prefix on a segment
// boundary.
func matchesPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
