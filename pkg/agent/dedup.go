package agent

import "sync"

// DefaultDedupCapacity bounds the acknowledgement ledger.
const DefaultDedupCapacity = 500

// DedupCache is the at-most-once delivery ledger. A key present in the
// cache is never sent again for the life of the session; the cache is
// process-scoped and reset on restart since keys derive from ephemeral
// DOM state. Eviction is FIFO once the capacity is reached.
type DedupCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	present  map[string]struct{}
}

// NewDedupCache creates a cache bounded to capacity entries. A capacity of
// zero or less uses DefaultDedupCapacity.
func NewDedupCache(capacity int) *DedupCache {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &DedupCache{
		capacity: capacity,
		present:  make(map[string]struct{}),
	}
}

// ShouldSend reports whether the key has not been sent yet.
func (c *DedupCache) ShouldSend(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, sent := c.present[key]
	return !sent
}

// MarkSent records the key, evicting the oldest entry at capacity.
func (c *DedupCache) MarkSent(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, sent := c.present[key]; sent {
		return
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.present, oldest)
	}

	c.order = append(c.order, key)
	c.present[key] = struct{}{}
}

// Len returns the number of recorded keys.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
