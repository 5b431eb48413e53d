// Package health exposes liveness and readiness endpoints for the gateway.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoku-app/gateway/internal/cache"
	"github.com/yoku-app/gateway/internal/observability"
)

// probeTimeout bounds dependency checks during readiness probes.
const probeTimeout = 2 * time.Second

// Handler serves health probes.
type Handler struct {
	cache   cache.Cache
	logger  observability.Logger
	version string
	started time.Time
}

// NewHandler creates a health handler.
func NewHandler(c cache.Cache, version string, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{
		cache:   c,
		logger:  logger,
		version: version,
		started: time.Now(),
	}
}

// Live reports that the process is running. It never checks dependencies.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready reports whether the gateway can serve traffic. The identity cache
// is probed with a read; an absent key means the cache is reachable.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	if err := h.probeCache(ctx); err != nil {
		h.logger.Warn("readiness probe failed",
			observability.String("dependency", "cache"),
			observability.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"cache":  "down",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cache":  "up",
	})
}

func (h *Handler) probeCache(ctx context.Context) error {
	_, err := h.cache.Get(ctx, "health:probe")
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return err
	}
	return nil
}
