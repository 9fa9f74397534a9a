// Package cache implements a sharded, TTL-aware, LRU cache for opaque
// byte-blob values. Each of CacheShardCount independently locked shards
// serves concurrent readers and writers: reads take a cheap read lock and
// only escalate to a write lock to promote a hot key to the front of its
// shard's LRU list; writes and eviction always take the write lock.
// Expiry is lazy — there is no background sweeper — so an expired entry
// still occupies a slot until a Get notices it or a Set evicts it under
// LRU pressure.
package cache

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	// CacheShardCount is the fixed number of independently locked shards.
	CacheShardCount = 16
	// CachePromotionThreshold is the access count at which a lazily-read
	// entry is escalated to the LRU head under a write lock. A tuning
	// knob, not a correctness parameter.
	CachePromotionThreshold = 3
	// CacheDefaultTTL is used when Set is called with ttlOverride == 0 and
	// the Cache itself was not given an explicit default.
	CacheDefaultTTL = 300 * time.Second
	// CacheKeyMaxLen is the longest key Set will accept. Get and
	// Invalidate do not check it; a longer key is simply never present.
	CacheKeyMaxLen = 256
)

var (
	// ErrInvalidArgument covers a nil/empty key, or one longer than
	// CacheKeyMaxLen.
	ErrInvalidArgument = errors.New("cache: invalid argument")
	// ErrResourceExhausted would cover allocation failure inside Set; Go's
	// allocator does not fail synchronously, so this is unreachable in
	// practice and exists only for interface parity with callers that
	// want to distinguish it from ErrInvalidArgument.
	ErrResourceExhausted = errors.New("cache: resource exhausted")
)

// Cache is a fixed array of CacheShardCount shards plus a default TTL.
type Cache struct {
	shards     [CacheShardCount]*shard
	defaultTTL time.Duration
	logger     *zap.Logger

	onHit   func()
	onMiss  func()
	onEvict func()
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithLogger attaches a zap logger for construction logging. Only New
// logs; Get, Set, Invalidate and Clear never do. A nil logger becomes a no-op
// logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHooks installs optional observers fired on each hit, miss, and
// eviction — used by cmd/demoserver to feed internal/obs's Prometheus
// counters without cache itself importing a metrics library.
func WithHooks(onHit, onMiss, onEvict func()) Option {
	return func(c *Cache) {
		if onHit != nil {
			c.onHit = onHit
		}
		if onMiss != nil {
			c.onMiss = onMiss
		}
		if onEvict != nil {
			c.onEvict = onEvict
		}
	}
}

// New builds a Cache with the given aggregate capacity, split evenly
// (ceiling division) across CacheShardCount shards, and a default TTL
// used whenever Set is called with ttlOverride == 0. A non-positive
// defaultTTL falls back to CacheDefaultTTL.
func New(capacity int, defaultTTL time.Duration, opts ...Option) *Cache {
	if capacity < CacheShardCount {
		capacity = CacheShardCount
	}
	if defaultTTL <= 0 {
		defaultTTL = CacheDefaultTTL
	}

	c := &Cache{
		defaultTTL: defaultTTL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	perShardCap := (capacity + CacheShardCount - 1) / CacheShardCount
	for i := range c.shards {
		c.shards[i] = newShard(perShardCap)
	}

	c.logger.Info("cache started",
		zap.Int("capacity", capacity),
		zap.Int("per_shard_capacity", perShardCap),
		zap.Duration("default_ttl", defaultTTL))
	return c
}

func (c *Cache) shardFor(hash uint32) *shard {
	return c.shards[hash%CacheShardCount]
}

// Get returns a zero-copy Ref into the value for key, or (nil, false) if
// the key is absent or has expired. The caller must call Release exactly
// once on a non-nil Ref.
func (c *Cache) Get(key []byte) (*Ref, bool) {
	if len(key) == 0 {
		return nil, false
	}

	hash := fnv1a32(key)
	s := c.shardFor(hash)
	bucketIdx := s.bucketIndex(hash)

	s.mu.RLock()
	e := s.findLocked(bucketIdx, key)
	if e == nil {
		s.mu.RUnlock()
		c.miss()
		return nil, false
	}

	now := time.Now()
	if e.expired(now) {
		s.mu.RUnlock()
		c.expireIfStillCurrent(s, bucketIdx, e)
		c.miss()
		return nil, false
	}

	e.refcount.Add(1)
	accessCount := e.accessCount.Add(1)
	s.mu.RUnlock()
	c.hit()

	if accessCount >= CachePromotionThreshold {
		c.promote(s, bucketIdx, e)
	}

	return &Ref{e: e}, true
}

// promote escalates e to its shard's LRU head under the write lock, only
// if e is still the live entry for its bucket slot — it may have been
// invalidated or evicted between the read-lock lookup and here.
func (c *Cache) promote(s *shard, bucketIdx int, e *entry) {
	s.mu.Lock()
	if !e.unlinked {
		s.moveToFrontLocked(e)
		e.accessCount.Store(0)
	}
	s.mu.Unlock()
}

// expireIfStillCurrent re-acquires the write lock and removes e only if
// it is still the live entry at bucketIdx and still expired — it may
// already have been replaced by a concurrent Set.
func (c *Cache) expireIfStillCurrent(s *shard, bucketIdx int, e *entry) {
	s.mu.Lock()
	if !e.unlinked && e.expired(time.Now()) {
		s.removeLocked(bucketIdx, e)
	}
	s.mu.Unlock()
}

// Set inserts or updates key with value. ttlOverride == 0 uses the
// cache's default TTL. Returns false only for an invalid key; a failed
// Set never leaves the shard partially modified.
func (c *Cache) Set(key, value []byte, ttlOverride time.Duration) bool {
	if len(key) == 0 || len(key) > CacheKeyMaxLen {
		return false
	}
	ttl := ttlOverride
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	hash := fnv1a32(key)
	s := c.shardFor(hash)
	bucketIdx := s.bucketIndex(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findLocked(bucketIdx, key); existing != nil {
		existing.value = append([]byte(nil), value...)
		existing.expiresAt = newEntryExpiry(ttl)
		existing.accessCount.Store(0)
		s.moveToFrontLocked(existing)
		return true
	}

	if s.size >= s.capacity {
		s.evictLRULocked()
		c.evict()
	}

	e := &entry{
		key:       append([]byte(nil), key...),
		value:     append([]byte(nil), value...),
		expiresAt: newEntryExpiry(ttl),
	}
	s.linkBucketLocked(bucketIdx, e)
	s.pushFrontLocked(e)
	s.size++
	return true
}

// Invalidate removes key if present. A no-op if absent.
func (c *Cache) Invalidate(key []byte) {
	if len(key) == 0 {
		return
	}
	hash := fnv1a32(key)
	s := c.shardFor(hash)
	bucketIdx := s.bucketIndex(hash)

	s.mu.Lock()
	if e := s.findLocked(bucketIdx, key); e != nil {
		s.removeLocked(bucketIdx, e)
	}
	s.mu.Unlock()
}

// Clear removes every entry from every shard.
func (c *Cache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.clearLocked()
		s.mu.Unlock()
	}
}

// Size returns the aggregate live entry count across all shards. Shard
// read locks are acquired strictly in increasing index order, the only
// discipline needed to keep this deadlock-free against the promotion
// path (which never holds two shard locks at once).
func (c *Cache) Size() int {
	total := 0
	for _, s := range c.shards {
		total += s.snapshotSize()
	}
	return total
}

// Capacity returns the aggregate configured capacity across all shards.
func (c *Cache) Capacity() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += s.capacity
		s.mu.RUnlock()
	}
	return total
}

// ShardSizes returns a point-in-time entry count for each shard, indexed
// by shard number, for per-shard size reporting.
func (c *Cache) ShardSizes() []int {
	sizes := make([]int, CacheShardCount)
	for i, s := range c.shards {
		sizes[i] = s.snapshotSize()
	}
	return sizes
}

func (c *Cache) hit() {
	if c.onHit != nil {
		c.onHit()
	}
}

func (c *Cache) miss() {
	if c.onMiss != nil {
		c.onMiss()
	}
}

func (c *Cache) evict() {
	if c.onEvict != nil {
		c.onEvict()
	}
}
