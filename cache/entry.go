package cache

import (
	"sync/atomic"
	"time"
)

// entry is owned exclusively by its shard until unlinked from both the
// bucket chain and the LRU list. After unlink, ownership passes to the
// set of outstanding Refs; Go's garbage collector reclaims it once the
// last one releases its pointer — refcount tracks that handoff for
// testability, not for memory safety.
type entry struct {
	key   []byte
	value []byte

	expiresAt time.Time

	accessCount atomic.Int32
	refcount    atomic.Int32

	// unlinked is true once this entry has been removed from its shard's
	// bucket chain and LRU list. Only read/written under the shard's
	// write lock.
	unlinked bool

	prev, next *entry // LRU list links
	hashNext   *entry // bucket chain link
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}
