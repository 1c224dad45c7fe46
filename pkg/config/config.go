// Package config loads client and CLI settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/mwapi-client/pkg/client"
	"github.com/Sternrassler/mwapi-client/pkg/logging"
	"github.com/Sternrassler/mwapi-client/pkg/throttle"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

// DefaultUserAgent is sent when MWAPI_USER_AGENT is not set.
const DefaultUserAgent = "mwapi-client/0.1.0 (https://github.com/Sternrassler/mwapi-client)"

// Config holds all settings read from the environment.
type Config struct {
	Endpoint  string        `envconfig:"MWAPI_ENDPOINT" required:"true"`
	UserAgent string        `envconfig:"MWAPI_USER_AGENT"`
	MaxLag    int           `envconfig:"MWAPI_MAXLAG" default:"5"`
	MaxWait   time.Duration `envconfig:"MWAPI_MAX_WAIT" default:"120s"`
	Timeout   time.Duration `envconfig:"MWAPI_TIMEOUT" default:"60s"`
	Assert    string        `envconfig:"MWAPI_ASSERT"`
	RateLimit float64       `envconfig:"MWAPI_RATE_LIMIT" default:"0"`

	HTTPUser     string `envconfig:"MWAPI_HTTP_USER"`
	HTTPPassword string `envconfig:"MWAPI_HTTP_PASSWORD"`

	// RedisURL enables the shared lag store. Either a redis:// URL or host:port.
	RedisURL string `envconfig:"REDIS_URL"`
	RedisDB  int    `envconfig:"REDIS_DB" default:"0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	// MetricsAddr starts a Prometheus endpoint when set, e.g. ":9090".
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("MWAPI_ENDPOINT is required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxWait < 0 {
		return nil, fmt.Errorf("MWAPI_MAX_WAIT must be >= 0 (got %v)", cfg.MaxWait)
	}
	return &cfg, nil
}

// ClientConfig maps the settings onto a client configuration. store may be
// nil.
func (c *Config) ClientConfig(store throttle.Store) client.Config {
	cfg := client.DefaultConfig(c.Endpoint, c.UserAgent)
	cfg.MaxLag = c.MaxLag
	cfg.MaxWait = c.MaxWait
	cfg.Timeout = c.Timeout
	cfg.Backoff = client.DefaultBackoffPolicy(c.MaxWait)
	cfg.Assert = c.Assert
	cfg.RateLimit = c.RateLimit
	cfg.Username = c.HTTPUser
	cfg.Password = c.HTTPPassword
	if store != nil {
		cfg.LagStore = store
	}
	return cfg
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.LogLevel),
		Pretty: c.LogPretty,
		Output: os.Stderr,
	}
}

// RedisOptions returns connection options for the lag store, or nil if no
// Redis is configured.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	if strings.HasPrefix(c.RedisURL, "redis://") || strings.HasPrefix(c.RedisURL, "rediss://") {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{
		Addr: c.RedisURL,
		DB:   c.RedisDB,
	}, nil
}
