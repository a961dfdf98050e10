package idgen

import (
	"sync"
	"time"
)

// tier is one row of the suffix-length tier table (spec §4.3).
type tier struct {
	upTo   int // element count ceiling for this tier; 0 means "no ceiling"
	length int
}

// tiers encodes spec §4.3's table: suffix length grows in steps as the live
// element count crosses each threshold, trading ID brevity for falling
// collision headroom.
var tiers = []tier{
	{upTo: 100, length: 4},
	{upTo: 2_500, length: 5},
	{upTo: 15_000, length: 6},
	{upTo: 80_000, length: 7},
	{upTo: 0, length: 8}, // unbounded
}

func lengthForCount(count int) int {
	for _, t := range tiers {
		if t.upTo == 0 || count < t.upTo {
			return t.length
		}
	}
	return MaxSuffixLength
}

// DefaultTTL is how long the cached element count is trusted before a
// Counter refresh is forced (spec §4.3).
const DefaultTTL = 60 * time.Second

// Counter reports the current live (non-deleted) element count. Storage
// implementations supply this; the cache never queries storage directly so
// it stays independent of any particular backend.
type Counter func() (int, error)

// Stats reports the cache's internal bookkeeping (spec §4.3: "expose hit
// rate and staleness for diagnostics").
type Stats struct {
	Hits        int64
	Misses      int64
	LastCount   int
	LastRefresh time.Time
	Stale       bool
}

// Cache is the adaptive ID-suffix-length cache (spec §4.3). It memoizes the
// live element count for TTL and derives the suffix length from the tier
// table, avoiding a count query on every single ID generation while still
// tracking growth closely enough to lengthen IDs before collisions become
// likely. No teacher analog exists; the shape follows the read-through,
// TTL-expiring cache idiom the teacher uses elsewhere for its blocked-issue
// materialized view (internal/storage/sqlite/blocked_cache.go), here applied
// to a scalar instead of a row set.
type Cache struct {
	mu      sync.Mutex
	counter Counter
	ttl     time.Duration

	count     int
	refreshed time.Time
	hits      int64
	misses    int64
}

// NewCache builds a Cache that calls counter to refresh the live element
// count whenever the cached value is older than ttl. ttl <= 0 uses DefaultTTL.
func NewCache(counter Counter, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{counter: counter, ttl: ttl}
}

// GetHashLength returns the suffix length to use for the next generated ID,
// refreshing the cached element count first if it has gone stale.
func (c *Cache) GetHashLength(now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshed.IsZero() || now.Sub(c.refreshed) >= c.ttl {
		n, err := c.counter()
		if err != nil {
			c.misses++
			// Serve the stale value rather than fail ID generation outright;
			// a slightly-too-short suffix just means an extra collision retry.
			if c.refreshed.IsZero() {
				return MaxSuffixLength, err
			}
			return lengthForCount(c.count), nil
		}
		c.misses++
		c.count = n
		c.refreshed = now
	} else {
		c.hits++
	}

	return lengthForCount(c.count), nil
}

// NotifyCreate tells the cache an element was just created, bumping the
// cached count immediately instead of waiting for the next TTL refresh. This
// keeps the suffix length reactive to bursts of creation within one TTL
// window (spec §4.3).
func (c *Cache) NotifyCreate(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshed.IsZero() {
		return
	}
	c.count++
}

// Refresh forces an immediate count refresh regardless of TTL.
func (c *Cache) Refresh(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.counter()
	if err != nil {
		return err
	}
	c.count = n
	c.refreshed = now
	return nil
}

// GetStats returns a snapshot of the cache's bookkeeping for diagnostics.
func (c *Cache) GetStats(now time.Time) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stale := c.refreshed.IsZero() || now.Sub(c.refreshed) >= c.ttl
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		LastCount:   c.count,
		LastRefresh: c.refreshed,
		Stale:       stale,
	}
}
