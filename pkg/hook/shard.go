package hook

import (
	"crypto/sha256"
	"encoding/binary"
)

// shardCount is the number of stripes used to partition the dependency
// graph and event set for concurrent access. Buckets are derived from a
// SHA-256 digest of a string key, reduced modulo the stripe count: each
// on_import/on_call/on_return only needs to appear atomic with respect to
// the graph's "already has edge" check and the event set's dedup, not
// atomic with respect to the whole graph.
const shardCount = 32

// shardFor deterministically maps a ModuleId to one of shardCount stripes.
func shardFor(id ModuleId) int {
	return hashToBucket(string(id), shardCount)
}

// hashToBucket hashes s with SHA-256 and reduces it mod buckets (the
// first two digest bytes as a big-endian uint16, modulo the bucket
// count).
func hashToBucket(s string, buckets int) int {
	h := sha256.New()
	h.Write([]byte(s))
	sum := h.Sum(nil)
	val := binary.BigEndian.Uint16(sum[:2])
	return int(val) % buckets
}
