package runtimecache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter is a Redis-backed token bucket, one bucket per caller ID,
// guarding the demo server's task-submission endpoint the same way the
// gateway guarded its send endpoint.
type Limiter struct {
	redis  *RedisClient
	logger *zap.Logger
	rps    int
	burst  int
}

// NewLimiter builds a Limiter refilling at rps tokens/second up to a
// burst ceiling.
func NewLimiter(redis *RedisClient, logger *zap.Logger, rps, burst int) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{redis: redis, logger: logger, rps: rps, burst: burst}
}

// Allow reports whether callerID may proceed now, and if not, how long
// to wait before retrying. The bucket state ("tokens:last_refill_unix")
// lives in a single Redis string per caller, refilled lazily on read
// rather than by a background ticker.
func (l *Limiter) Allow(ctx context.Context, callerID uuid.UUID) (bool, time.Duration, error) {
	key := fmt.Sprintf("ratelimit:%s", callerID)
	now := time.Now()
	windowStart := now.Truncate(time.Second)

	raw, err := l.redis.Get(ctx, key).Result()
	currentTokens := l.burst
	lastRefill := windowStart

	if err == nil {
		var lastRefillUnix int64
		if _, scanErr := fmt.Sscanf(raw, "%d:%d", &currentTokens, &lastRefillUnix); scanErr == nil {
			lastRefill = time.Unix(lastRefillUnix, 0)
		}
	} else if err != redis.Nil {
		return false, 0, fmt.Errorf("runtimecache: rate limit lookup: %w", err)
	}

	elapsed := windowStart.Sub(lastRefill)
	tokensToAdd := int(elapsed.Seconds()) * l.rps
	if currentTokens+tokensToAdd > l.burst {
		currentTokens = l.burst
	} else {
		currentTokens += tokensToAdd
	}

	if currentTokens <= 0 {
		retryAfter := time.Second - time.Duration(now.Nanosecond())
		return false, retryAfter, nil
	}

	currentTokens--

	newValue := fmt.Sprintf("%d:%d", currentTokens, windowStart.Unix())
	if err := l.redis.Set(ctx, key, newValue, time.Minute).Err(); err != nil {
		l.logger.Warn("rate limit state write failed", zap.Error(err))
	}

	return true, 0, nil
}

// Reset clears callerID's bucket.
func (l *Limiter) Reset(ctx context.Context, callerID uuid.UUID) error {
	key := fmt.Sprintf("ratelimit:%s", callerID)
	return l.redis.Del(ctx, key).Err()
}
