package cache

// Ref is a zero-copy reference into a cache entry's value bytes, valid
// until Release is called exactly once. The bytes remain valid across
// Invalidate, Clear, eviction, or even Cache destruction — their lifetime
// is governed purely by the refcount, independent of the cache's.
type Ref struct {
	e *entry
}

// Value returns the referenced value bytes. Do not mutate them; Set
// always installs a fresh slice rather than mutating in place, but the
// returned slice is shared with the shard (and with any other
// outstanding Ref to the same entry) until released.
func (r *Ref) Value() []byte {
	if r == nil || r.e == nil {
		return nil
	}
	return r.e.value
}

// Release decrements the reference count. Release on a nil Ref (or a
// Ref with a nil entry) is a no-op.
func (r *Ref) Release() {
	if r == nil || r.e == nil {
		return
	}
	r.e.refcount.Add(-1)
}
