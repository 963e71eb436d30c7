package market

import (
	"context"
	"sync"
	"time"
)

// Cache stores encoded gateway entries. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// purgeEvery bounds how long expired entries may sit in a MemoryCache that
// keeps receiving writes for other keys.
const purgeEvery = time.Minute

type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	now        func() time.Time
	lastPurged time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastPurged) >= purgeEvery {
		c.purgeLocked(now)
	}
	c.entries[key] = memoryEntry{value: value, expires: now.Add(ttl)}
	return nil
}

// Purge drops expired entries and returns how many it removed.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(c.now())
}

func (c *MemoryCache) purgeLocked(now time.Time) int {
	c.lastPurged = now
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RunPurger purges on a ticker until ctx is done, so an idle cache also
// releases expired entries.
func (c *MemoryCache) RunPurger(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}
