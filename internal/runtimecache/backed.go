package runtimecache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskcache/cache"
)

// BackedCache layers the in-process cache.Cache as an L1 in front of a
// Redis L2. A Get consults L1 first; on a miss it falls through to
// Redis and, if found there, repopulates L1 with the default TTL so the
// next Get for the same key is satisfied without a round trip. A Set
// writes through to both tiers.
//
// This mirrors the gateway's habit of layering Redis in front of
// Postgres for read-heavy paths (internal/db, internal/persistence),
// just with cache.Cache standing in as the fast tier instead of an
// in-process map.
type BackedCache struct {
	l1     *cache.Cache
	l2     *RedisClient
	logger *zap.Logger
	ttl    time.Duration
}

// NewBackedCache wraps an already-constructed L1 cache.Cache with a
// Redis L2. A nil l2 is allowed — BackedCache then behaves exactly like
// l1 alone, so callers can wire this unconditionally and only pay for
// Redis when REDIS_URL is actually configured.
func NewBackedCache(l1 *cache.Cache, l2 *RedisClient, ttl time.Duration, logger *zap.Logger) *BackedCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = cache.CacheDefaultTTL
	}
	return &BackedCache{l1: l1, l2: l2, ttl: ttl, logger: logger}
}

// Get tries L1, then L2. The returned bytes are a copy — L2 reads don't
// produce a cache.Ref, since the value no longer lives inside a shard.
func (b *BackedCache) Get(ctx context.Context, key []byte) ([]byte, bool) {
	if ref, ok := b.l1.Get(key); ok {
		defer ref.Release()
		v := append([]byte(nil), ref.Value()...)
		return v, true
	}

	if b.l2 == nil {
		return nil, false
	}

	val, err := b.l2.Get(ctx, string(key)).Bytes()
	if err != nil {
		return nil, false
	}

	b.l1.Set(key, val, b.ttl)
	return val, true
}

// Set writes to L1 unconditionally and to L2 best-effort: an L2 write
// failure is logged but does not fail the call, since L1 remains
// authoritative for this process and L2 is just a warm cache for others.
func (b *BackedCache) Set(ctx context.Context, key, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = b.ttl
	}
	b.l1.Set(key, value, ttl)

	if b.l2 == nil {
		return
	}
	if err := b.l2.Set(ctx, string(key), value, ttl).Err(); err != nil {
		b.logger.Warn("l2 cache write failed", zap.Error(err), zap.ByteString("key", key))
	}
}

// Invalidate removes key from both tiers.
func (b *BackedCache) Invalidate(ctx context.Context, key []byte) {
	b.l1.Invalidate(key)
	if b.l2 != nil {
		if err := b.l2.Del(ctx, string(key)).Err(); err != nil {
			b.logger.Warn("l2 cache invalidate failed", zap.Error(err), zap.ByteString("key", key))
		}
	}
}
