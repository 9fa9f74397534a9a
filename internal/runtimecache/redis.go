// Package runtimecache wires the in-process cache package to optional
// backing services: a Redis L2 tier behind the in-memory L1, and a
// Redis-backed token-bucket rate limiter for the demo server's
// submission endpoint.
package runtimecache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is a thin wrapper over *redis.Client, grounded on the
// gateway's persistence/db Redis wrappers, merged into one type since
// this module has no need for two competing Redis client constructors.
type RedisClient struct {
	*redis.Client
}

// NewRedis parses redisURL, applies pool tuning matching the gateway's
// defaults, and pings before returning so callers learn about a
// misconfigured URL at startup rather than on first use.
func NewRedis(ctx context.Context, redisURL string) (*RedisClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("runtimecache: parse redis url: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 5
	opts.ConnMaxLifetime = time.Hour

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("runtimecache: ping redis: %w", err)
	}

	return &RedisClient{Client: client}, nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.Ping(ctx).Err()
}
