package fetch

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL keeps fetched pages for three days.
const DefaultCacheTTL = 72 * time.Hour

// Cache stores page bodies keyed by URL.
type Cache interface {
	Get(ctx context.Context, rawURL string) ([]byte, bool)
	Set(ctx context.Context, rawURL string, body []byte)
	Close() error
}

type cacheEntry struct {
	body     []byte
	cachedAt time.Time
}

// MemoryCache is a process-local page cache with a TTL.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a memory cache; ttl <= 0 selects DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a cached body if present and not expired.
// Expired entries are removed.
func (c *MemoryCache) Get(_ context.Context, rawURL string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[rawURL]
	if !exists {
		return nil, false
	}
	if c.now().Sub(entry.cachedAt) > c.ttl {
		delete(c.entries, rawURL)
		return nil, false
	}
	return entry.body, true
}

// Set stores a body.
func (c *MemoryCache) Set(_ context.Context, rawURL string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rawURL] = cacheEntry{body: body, cachedAt: c.now()}
}

// CleanExpired removes expired entries and returns how many were removed.
func (c *MemoryCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of cached entries.
func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	return nil
}
