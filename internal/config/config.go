// Package config provides configuration management for the gateway.
// Configuration is loaded from a YAML file with environment variable
// substitution, validated, and optionally watched for route-table reloads.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds all configuration settings for the gateway.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
	Provider ProviderConfig `yaml:"provider"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Services []Service      `yaml:"services"`
	Routes   []Route        `yaml:"routes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Cache backend types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// CacheConfig holds identity cache settings.
type CacheConfig struct {
	Type    string            `yaml:"type"`
	AuthTTL Duration          `yaml:"authTTL"`
	Redis   *RedisCacheConfig `yaml:"redis"`
}

// RedisCacheConfig holds Redis connection settings.
type RedisCacheConfig struct {
	URL            string   `yaml:"url"`
	PoolSize       int      `yaml:"poolSize"`
	ConnectTimeout Duration `yaml:"connectTimeout"`
	ReadTimeout    Duration `yaml:"readTimeout"`
	WriteTimeout   Duration `yaml:"writeTimeout"`
}

// ProviderConfig holds external identity provider settings.
type ProviderConfig struct {
	URL     string   `yaml:"url"`
	APIKey  string   `yaml:"apiKey"`
	Timeout Duration `yaml:"timeout"`
}

// MetricsConfig holds Prometheus metrics settings. Metrics are served on
// their own listener so the scrape endpoint never passes through the
// authentication hook.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Service is a backend service the gateway forwards to.
type Service struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Route maps a gateway path prefix to a backend service.
type Route struct {
	Prefix      string `yaml:"prefix"`
	Service     string `yaml:"service"`
	StripPrefix bool   `yaml:"stripPrefix"`
}

// DefaultAuthTTL is the cache lifetime for a resolved identity.
const DefaultAuthTTL = Duration(3600 * time.Second)

// SetDefaults applies default values for unset fields.
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(120 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(15 * time.Second)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Cache.Type == "" {
		c.Cache.Type = CacheTypeRedis
	}
	if c.Cache.AuthTTL == 0 {
		c.Cache.AuthTTL = DefaultAuthTTL
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = Duration(10 * time.Second)
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Cache.Type {
	case CacheTypeMemory:
	case CacheTypeRedis:
		if c.Cache.Redis == nil || c.Cache.Redis.URL == "" {
			return fmt.Errorf("cache.redis.url is required for redis cache")
		}
	default:
		return fmt.Errorf("unknown cache type %q", c.Cache.Type)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
	}

	if c.Provider.URL == "" {
		return fmt.Errorf("provider.url is required")
	}
	if _, err := url.Parse(c.Provider.URL); err != nil {
		return fmt.Errorf("provider.url invalid: %w", err)
	}

	services := make(map[string]bool, len(c.Services))
	for i, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("services[%d].name is required", i)
		}
		if services[svc.Name] {
			return fmt.Errorf("duplicate service name %q", svc.Name)
		}
		u, err := url.Parse(svc.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("service %q has invalid url %q", svc.Name, svc.URL)
		}
		services[svc.Name] = true
	}

	for i, route := range c.Routes {
		if !strings.HasPrefix(route.Prefix, "/") {
			return fmt.Errorf("routes[%d].prefix %q must start with /", i, route.Prefix)
		}
		if !services[route.Service] {
			return fmt.Errorf("routes[%d] references unknown service %q", i, route.Service)
		}
	}

	return nil
}
