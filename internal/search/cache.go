package search

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// QueryKey builds the deterministic cache digest over the normalized query
// and every filter parameter that shapes the result set.
func QueryKey(normalizedQuery string, limit int, fileType, sortBy string) string {
	var b strings.Builder
	b.WriteString(normalizedQuery)
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d", limit)
	b.WriteByte('|')
	b.WriteString(fileType)
	b.WriteByte('|')
	b.WriteString(sortBy)
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

type cacheEntry struct {
	results   string
	createdAt time.Time
	expiresAt time.Time
}

// ResultCache is the in-memory layer in front of the persistent query cache.
// Entries expire after the TTL; a background sweeper removes dead entries so
// the map stays bounded.
type ResultCache struct {
	entries sync.Map
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewResultCache creates a cache with the given TTL and starts the sweeper.
func NewResultCache(ttl time.Duration) *ResultCache {
	c := &ResultCache{
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get returns the serialized results for a key, or "" on miss/expiry.
func (c *ResultCache) Get(key string) (string, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	entry := v.(cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.entries.Delete(key)
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return entry.results, true
}

// Put stores serialized results under a key.
func (c *ResultCache) Put(key, results string) {
	now := time.Now()
	c.entries.Store(key, cacheEntry{
		results:   results,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	})
}

// Invalidate drops every entry. Called on document writes so in-memory
// staleness never exceeds the persistent layer's.
func (c *ResultCache) Invalidate() {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
}

// Stats returns hit/miss counters.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) cleanupLoop() {
	interval := c.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.entries.Range(func(key, v any) bool {
				if now.After(v.(cacheEntry).expiresAt) {
					c.entries.Delete(key)
				}
				return true
			})
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the background sweeper.
func (c *ResultCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}
