package cache

import "hash/fnv"

// fnv1a32 hashes key bytes with 32-bit FNV-1a, used for both shard and
// in-shard bucket selection.
func fnv1a32(key []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return h.Sum32()
}
