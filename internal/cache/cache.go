// Package cache provides a content-addressed cache of extraction results,
// keyed by a hash of the raw image bytes so identical uploads skip the
// quality gate and the extractor entirely.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"sync"

	"github.com/facegate/facegate/internal/embedding"
)

// Cache is a bounded map from content hash to extracted face candidates.
//
// Eviction is insertion-order (FIFO): when the cache is full the
// oldest-inserted entry goes first, even if it was read recently. This
// matches the reference behavior; callers that need recency-aware eviction
// should swap in an LRU here rather than assume one.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]embedding.FaceCandidate
	order    []string // insertion order, oldest first

	hits   uint64
	misses uint64
}

// New creates a cache holding at most capacity entries. Capacity below 1
// is treated as 1.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string][]embedding.FaceCandidate, capacity),
	}
}

// Key computes the content hash for raw image bytes. MD5 is fine here:
// the key only guards against accidental collision, not an adversary.
func Key(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached candidates for a key, or ok=false on a miss.
func (c *Cache) Get(key string) ([]embedding.FaceCandidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidates, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return candidates, ok
}

// Put stores candidates under the key, evicting the oldest entry first
// when at capacity. Re-putting an existing key replaces the value without
// touching its position in the eviction order.
func (c *Cache) Put(key string, candidates []embedding.FaceCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = candidates
		return
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = candidates
	c.order = append(c.order, key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
