// Package runtimeconfig loads cmd/demoserver's environment-driven
// configuration the way the original gateway's internal/config package
// did: struct tags processed by envconfig, optional dependencies left
// unset rather than required, since this is a demonstration harness for
// pool and cache rather than a production gateway.
package runtimeconfig

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the top-level environment configuration for cmd/demoserver.
type Config struct {
	// HTTP server
	Port         string        `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`

	// Worker pool
	PoolWorkers    int `envconfig:"POOL_WORKERS" default:"0"` // 0 = auto (GOMAXPROCS)
	PoolLocalQueue int `envconfig:"POOL_LOCAL_QUEUE_SIZE" default:"256"`
	PoolGlobalQueue int `envconfig:"POOL_GLOBAL_QUEUE_SIZE" default:"1024"`

	// Cache
	CacheCapacity   int           `envconfig:"CACHE_CAPACITY" default:"10000"`
	CacheDefaultTTL time.Duration `envconfig:"CACHE_DEFAULT_TTL" default:"300s"`

	// Optional backing services — left unset (empty string) disables the
	// corresponding demo component rather than failing startup.
	RedisURL    string `envconfig:"REDIS_URL" default:""`
	PostgresURL string `envconfig:"POSTGRES_URL" default:""`
	NATSURL     string `envconfig:"NATS_URL" default:""`

	// Auth
	APIKeyHash string `envconfig:"API_KEY_HASH" default:""`

	// Observability
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads Config from the environment, applying the defaults declared
// in the struct tags above.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolvedPoolWorkers returns PoolWorkers, substituting the supplied
// fallback when the operator left it at its zero/auto value.
func (c *Config) ResolvedPoolWorkers(autoFallback int) int {
	if c.PoolWorkers > 0 {
		return c.PoolWorkers
	}
	return autoFallback
}
