// Package server assembles the gateway HTTP surface: the middleware chain,
// the explicit gateway endpoints, and prefix-routed forwarding to backend
// services.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yoku-app/gateway/internal/apierror"
	"github.com/yoku-app/gateway/internal/auth"
	"github.com/yoku-app/gateway/internal/config"
	"github.com/yoku-app/gateway/internal/health"
	"github.com/yoku-app/gateway/internal/middleware"
	"github.com/yoku-app/gateway/internal/observability"
	"github.com/yoku-app/gateway/internal/proxy"
	"github.com/yoku-app/gateway/internal/router"
)

// Version is the build version, set at link time.
var Version = "dev"

// Server is the gateway HTTP server.
type Server struct {
	cfg      *config.Config
	logger   observability.Logger
	resolver *auth.Resolver
	revoker  *auth.Revoker
	table    *router.Table
	registry *proxy.Registry
	health   *health.Handler

	httpServer    *http.Server
	metricsServer *http.Server
}

// New assembles the gateway server.
func New(
	cfg *config.Config,
	resolver *auth.Resolver,
	revoker *auth.Revoker,
	registry *proxy.Registry,
	healthHandler *health.Handler,
	logger observability.Logger,
) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		revoker:  revoker,
		table:    router.NewTable(cfg.Routes),
		registry: registry,
		health:   healthHandler,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	// The boundary sits inside logging so access logs record the final
	// status; recovery sits inside the boundary so a panic becomes a
	// classified error before serialization.
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logging(logger))
	engine.Use(middleware.ErrorHandler(logger))
	engine.Use(middleware.Recovery(logger))
	engine.Use(auth.Middleware(resolver))

	s.registerRoutes(engine)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout),
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		s.metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
	}

	return s
}

// Handler exposes the request handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// registerRoutes wires the gateway's own endpoints. Everything else falls
// through to prefix-routed forwarding.
func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/api/p/health", s.health.Live)
	engine.GET("/api/p/health/ready", s.health.Ready)

	engine.POST("/api/auth/logout", s.handleLogout)
	engine.GET("/api/p/user/:userId", s.handlePublicUserLookup)
	engine.PUT("/api/user/", s.handleUserUpdate)

	engine.NoRoute(s.dispatch)
}

// dispatch forwards an unmatched request to the backend selected by
// longest-prefix route lookup.
func (s *Server) dispatch(c *gin.Context) {
	route, ok := s.table.Match(c.Request.URL.Path)
	if !ok {
		_ = c.Error(apierror.NotFound("resource not found", apierror.WithoutLogging()))
		return
	}

	forwarder, ok := s.registry.Get(route.Service)
	if !ok {
		// A route pointing at an unregistered service is a configuration
		// fault, not a client one.
		_ = c.Error(apierror.Operation("no backend registered for service " + route.Service))
		return
	}

	strip := ""
	if route.StripPrefix {
		strip = route.Prefix
	}
	if err := forwarder.Forward(c.Writer, c.Request, strip); err != nil {
		_ = c.Error(err)
	}
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("gateway listening",
			observability.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()

	if s.metricsServer != nil {
		go func() {
			s.logger.Info("metrics listening",
				observability.String("addr", s.metricsServer.Addr),
				observability.String("path", s.cfg.Metrics.Path))
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		_ = s.shutdown()
		return err
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.cfg.Server.ShutdownTimeout))
	defer cancel()

	s.logger.Info("shutting down")

	var firstErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ApplyConfig installs a reloaded route table and service set. Server
// listeners and the auth stack are not reconfigured at runtime.
func (s *Server) ApplyConfig(cfg *config.Config) {
	if err := s.registry.Rebuild(cfg.Services); err != nil {
		s.logger.Error("config reload rejected", observability.Error(err))
		return
	}
	s.table.Swap(cfg.Routes)
	s.logger.Info("route table reloaded",
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("services", len(cfg.Services)))
}
