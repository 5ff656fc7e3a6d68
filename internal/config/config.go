// Package config loads the runtime configuration from environment
// variables, with typed defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	defaultHTTPPort        = 8080
	defaultCacheTTLSeconds = 30
	defaultMaxPositionQty  = 100000
)

// Config keeps the runtime configuration for the service.
type Config struct {
	HTTPPort        int
	DatabaseURL     string // empty → in-memory store
	RedisURL        string // empty → no cache layer
	CacheTTLSeconds int
	MaxPositionQty  int64  // per-instrument quantity cap; 0 disables
	MaxTotalCost    string // aggregate cost-basis cap as a decimal string; empty disables
}

// Addr renders the HTTP listen address in :port form.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	port, err := getInt("PORT", defaultHTTPPort)
	if err != nil {
		return nil, err
	}
	ttl, err := getInt("CACHE_TTL_SECONDS", defaultCacheTTLSeconds)
	if err != nil {
		return nil, err
	}
	maxQty, err := getInt("MAX_POSITION_QTY", defaultMaxPositionQty)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPPort:        port,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		CacheTTLSeconds: ttl,
		MaxPositionQty:  int64(maxQty),
		MaxTotalCost:    os.Getenv("MAX_TOTAL_COST"),
	}, nil
}

func getInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, raw, err)
	}
	return v, nil
}
