// Command gateway runs the API gateway: it authenticates requests against
// the external identity provider with a Redis-backed identity cache, then
// forwards them to the configured backend services.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yoku-app/gateway/internal/auth"
	"github.com/yoku-app/gateway/internal/cache"
	"github.com/yoku-app/gateway/internal/config"
	"github.com/yoku-app/gateway/internal/health"
	"github.com/yoku-app/gateway/internal/observability"
	"github.com/yoku-app/gateway/internal/proxy"
	"github.com/yoku-app/gateway/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting gateway",
		observability.String("version", server.Version),
		observability.String("config", configPath))

	identityCache, err := cache.New(&cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer func() { _ = identityCache.Close() }()

	provider := auth.NewHTTPProvider(&cfg.Provider, logger)
	validator := auth.NewTokenValidator(provider, logger)
	resolver := auth.NewResolver(identityCache, validator,
		time.Duration(cfg.Cache.AuthTTL), logger)
	revoker := auth.NewRevoker(identityCache, logger)

	registry, err := proxy.NewRegistry(cfg.Services, logger)
	if err != nil {
		return fmt.Errorf("init backend registry: %w", err)
	}

	healthHandler := health.NewHandler(identityCache, server.Version, logger)

	srv := server.New(cfg, resolver, revoker, registry, healthHandler, logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		srv.ApplyConfig(next)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("init config watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	return srv.Start(ctx)
}
