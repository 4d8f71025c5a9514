package valuation

import (
	"sync"
	"time"

	"github.com/aristath/fundval/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// maxCacheEntries triggers a sweep of expired entries.
const maxCacheEntries = 2000

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// resultCache is a read-through TTL cache of encoded results. Entries are
// immutable snapshots; callers always receive a fresh copy.
type resultCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *resultCache) get(key string) (*domain.ValuationResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}

	var result domain.ValuationResult
	if err := msgpack.Unmarshal(entry.payload, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *resultCache) set(key string, result *domain.ValuationResult) error {
	payload, err := msgpack.Marshal(result)
	if err != nil {
		return err
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= maxCacheEntries {
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = cacheEntry{payload: payload, expiresAt: now.Add(c.ttl)}
	return nil
}
