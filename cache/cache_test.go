package cache

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Scenario A — basic set/get.
func TestBasicSetGet(t *testing.T) {
	c := New(100, 300*time.Second)

	if ok := c.Set([]byte("k"), []byte("v"), 0); !ok {
		t.Fatal("set returned false")
	}

	ref, ok := c.Get([]byte("k"))
	if !ok {
		t.Fatal("get returned miss for a freshly set key")
	}
	if !bytes.Equal(ref.Value(), []byte("v")) {
		t.Fatalf("value = %q, want %q", ref.Value(), "v")
	}
	ref.Release()

	if _, ok := c.Get([]byte("missing")); ok {
		t.Fatal("get on unknown key should miss")
	}
}

// Scenario B — LRU eviction: per-shard capacity ends up at 3
// (48 aggregate / 16 shards), insert 200 keys, aggregate size stays
// bounded and the most recent key survives.
func TestLRUEviction(t *testing.T) {
	c := New(48, 300*time.Second)

	for i := 0; i < 200; i++ {
		key := []byte(fmt.Sprintf("k%d", i))
		if !c.Set(key, []byte("data"), 0) {
			t.Fatalf("set k%d failed", i)
		}
	}

	if size, cap := c.Size(), c.Capacity(); size > cap {
		t.Fatalf("aggregate size %d exceeds capacity %d", size, cap)
	}

	ref, ok := c.Get([]byte("k199"))
	if !ok {
		t.Fatal("most recently inserted key should still be present")
	}
	ref.Release()

	if _, ok := c.Get([]byte("k0")); ok {
		t.Log("k0 survived sharding by chance; eviction is per-shard, not guaranteed for any single key")
	}
}

// Scenario C — TTL expiration.
func TestExpiration(t *testing.T) {
	c := New(100, 300*time.Second)

	c.Set([]byte("x"), []byte("tmp"), time.Second)
	before := c.Size()

	time.Sleep(2 * time.Second)

	if _, ok := c.Get([]byte("x")); ok {
		t.Fatal("expired key should miss")
	}
	if after := c.Size(); after != before-1 {
		t.Fatalf("size after expiry = %d, want %d", after, before-1)
	}
}

// Round-trip law: set(k,v); invalidate(k); get(k) -> nil.
func TestInvalidate(t *testing.T) {
	c := New(100, 300*time.Second)
	c.Set([]byte("k"), []byte("v"), 0)
	c.Invalidate([]byte("k"))

	if _, ok := c.Get([]byte("k")); ok {
		t.Fatal("get after invalidate should miss")
	}
}

func TestClear(t *testing.T) {
	c := New(100, 300*time.Second)
	for i := 0; i < 10; i++ {
		c.Set([]byte(fmt.Sprintf("k%d", i)), []byte("v"), 0)
	}
	c.Clear()
	if got := c.Size(); got != 0 {
		t.Fatalf("size after clear = %d, want 0", got)
	}
}

// Scenario F — a reference's bytes survive invalidate, and Release
// after invalidate does not panic.
func TestRefSurvivesInvalidate(t *testing.T) {
	c := New(100, 300*time.Second)
	c.Set([]byte("k"), []byte("abcd"), 0)

	ref, ok := c.Get([]byte("k"))
	if !ok {
		t.Fatal("get returned miss")
	}

	c.Invalidate([]byte("k"))

	if _, ok := c.Get([]byte("k")); ok {
		t.Fatal("get after invalidate should miss")
	}
	if !bytes.Equal(ref.Value(), []byte("abcd")) {
		t.Fatalf("ref bytes changed after invalidate: %q", ref.Value())
	}
	ref.Release()
}

// A reference also survives LRU eviction of its own entry.
func TestRefSurvivesEviction(t *testing.T) {
	c := New(16, 300*time.Second) // 1 slot per shard

	victim := []byte("victim")
	c.Set(victim, []byte("first"), 0)
	ref, ok := c.Get(victim)
	if !ok {
		t.Fatal("get returned miss")
	}

	victimShard := fnv1a32(victim) % CacheShardCount

	// Find another key landing in the same shard; with a single slot per
	// shard, setting it evicts "victim" deterministically.
	var sameShardKey []byte
	for i := 0; ; i++ {
		candidate := []byte(fmt.Sprintf("filler%d", i))
		if fnv1a32(candidate)%CacheShardCount == victimShard {
			sameShardKey = candidate
			break
		}
	}
	c.Set(sameShardKey, []byte("x"), 0)

	if _, ok := c.Get(victim); ok {
		t.Fatal("victim should have been evicted from its single-slot shard")
	}

	if !bytes.Equal(ref.Value(), []byte("first")) {
		t.Fatalf("ref bytes changed after eviction: %q", ref.Value())
	}
	ref.Release()
}

func TestReleaseNilIsNoop(t *testing.T) {
	var ref *Ref
	ref.Release() // must not panic
}

func TestSetRejectsInvalidKeys(t *testing.T) {
	c := New(100, 300*time.Second)

	if c.Set(nil, []byte("v"), 0) {
		t.Fatal("set with nil key should fail")
	}
	if c.Set([]byte{}, []byte("v"), 0) {
		t.Fatal("set with empty key should fail")
	}

	tooLong := bytes.Repeat([]byte("k"), CacheKeyMaxLen+1)
	if c.Set(tooLong, []byte("v"), 0) {
		t.Fatal("set with over-long key should fail")
	}
}

func TestBoundaryKeyLengths(t *testing.T) {
	c := New(100, 300*time.Second)

	short := []byte("k")
	long := bytes.Repeat([]byte("k"), CacheKeyMaxLen)

	if !c.Set(short, []byte("v1"), 0) {
		t.Fatal("1-byte key set failed")
	}
	if !c.Set(long, []byte("v2"), 0) {
		t.Fatal("max-length key set failed")
	}

	if ref, ok := c.Get(short); !ok || !bytes.Equal(ref.Value(), []byte("v1")) {
		t.Fatal("1-byte key round-trip failed")
	} else {
		ref.Release()
	}
	if ref, ok := c.Get(long); !ok || !bytes.Equal(ref.Value(), []byte("v2")) {
		t.Fatal("max-length key round-trip failed")
	} else {
		ref.Release()
	}
}

func TestSetThenGetNeverObservesStaleValue(t *testing.T) {
	c := New(100, 300*time.Second)
	c.Set([]byte("k"), []byte("v1"), 0)
	c.Set([]byte("k"), []byte("v2"), 0)

	ref, ok := c.Get([]byte("k"))
	if !ok {
		t.Fatal("get returned miss")
	}
	defer ref.Release()

	if bytes.Equal(ref.Value(), []byte("v1")) {
		t.Fatal("get observed the superseded value")
	}
	if !bytes.Equal(ref.Value(), []byte("v2")) {
		t.Fatalf("value = %q, want v2", ref.Value())
	}
}

func TestPromotionUnderSustainedReads(t *testing.T) {
	c := New(16, 300*time.Second)
	c.Set([]byte("hot"), []byte("v"), 0)

	for i := 0; i < CachePromotionThreshold+2; i++ {
		ref, ok := c.Get([]byte("hot"))
		if !ok {
			t.Fatal("get returned miss on a live key")
		}
		ref.Release()
	}
	// No direct assertion on LRU position (an internal detail); this
	// test only documents that repeated reads on a hot key never fail
	// and never panic under the write-lock escalation path.
}

// Scenario E (lite) — concurrent readers and writers over a small
// keyspace; no deadlock, every hit is released, size stays bounded.
func TestConcurrentReadersAndWriters(t *testing.T) {
	c := New(800, 300*time.Second)
	const keys = 50
	const iterations = 2000

	var wg sync.WaitGroup
	var hits, misses int64

	for g := 0; g < 8; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				key := []byte(fmt.Sprintf("key%d", (g*iterations+i)%keys))
				if g%2 == 0 {
					ref, ok := c.Get(key)
					if ok {
						atomic.AddInt64(&hits, 1)
						ref.Release()
					} else {
						atomic.AddInt64(&misses, 1)
					}
				} else {
					c.Set(key, []byte("v"), 0)
				}
			}
		}()
	}
	wg.Wait()

	if size, capacity := c.Size(), c.Capacity(); size > capacity {
		t.Fatalf("aggregate size %d exceeds capacity %d", size, capacity)
	}
}
