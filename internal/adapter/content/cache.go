package content

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/arturoeanton/godsplan/internal/port"
)

// CachedStore wraps a ContentStore with a TTL cache. Misses ("not found")
// are cached too; errors are not.
type CachedStore struct {
	next    port.ContentStore
	ttl     time.Duration
	maxSize int
	nowF    func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedNode
	hits    uint64
	misses  uint64
}

type cachedNode struct {
	raw      json.RawMessage
	found    bool
	cachedAt time.Time
}

// NewCachedStore returns next unchanged when ttl <= 0.
func NewCachedStore(next port.ContentStore, ttl time.Duration, maxSize int) port.ContentStore {
	if ttl <= 0 {
		return next
	}
	if maxSize <= 0 {
		maxSize = 256
	}
	return &CachedStore{
		next:    next,
		ttl:     ttl,
		maxSize: maxSize,
		nowF:    time.Now,
		entries: make(map[string]cachedNode),
	}
}

// Get implements port.ContentStore.
func (c *CachedStore) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	if node, ok := c.lookup(path); ok {
		return node.raw, node.found, nil
	}

	raw, found, err := c.next.Get(ctx, path)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.maxSize {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[path] = cachedNode{raw: raw, found: found, cachedAt: c.nowF()}
	c.mu.Unlock()

	return raw, found, nil
}

func (c *CachedStore) lookup(path string) (cachedNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[path]
	if ok && c.nowF().Sub(node.cachedAt) > c.ttl {
		delete(c.entries, path)
		ok = false
	}
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return node, ok
}

// Stats returns a snapshot of hit/miss counters.
func (c *CachedStore) Stats() port.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return port.CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}
