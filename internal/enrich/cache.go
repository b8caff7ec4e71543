// Package enrich resolves flight metadata for observed aircraft.
//
// An Enricher walks the positions of one fetch pass, serves identifiers from a
// short-lived Cache where it can and calls the metadata provider for the rest,
// up to a per-pass budget. Display names come from a Resolver that applies a
// fixed fallback chain over static name tables.
//
// None of the types here are safe for concurrent use; they are owned by the
// producer goroutine.
package enrich

import (
	"strings"
	"time"

	"github.com/unklstewy/flightwall/pkg/flightaware"
)

// DefaultCacheTTL is how long a resolved flight is reused.
const DefaultCacheTTL = 60 * time.Second

type cacheEntry struct {
	meta       flightaware.FlightMetadata
	insertedAt time.Time
}

// Cache is a TTL-bounded map from identifier to metadata. Identifiers are
// compared case-insensitively.
//
// Times should come from time.Now so ages use the monotonic clock. An entry
// whose age is negative is treated as expired.
type Cache struct {
	ttl     time.Duration
	entries map[string]cacheEntry
}

// NewCache creates a cache. A non-positive ttl uses DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Len returns the number of entries, including expired ones not yet pruned.
func (c *Cache) Len() int { return len(c.entries) }

// Prune drops expired entries and returns how many were removed.
func (c *Cache) Prune(now time.Time) int {
	removed := 0
	for key, e := range c.entries {
		if !c.fresh(e, now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Lookup returns the metadata for ident if an entry exists and is fresh.
func (c *Cache) Lookup(ident string, now time.Time) (flightaware.FlightMetadata, bool) {
	key := cacheKey(ident)
	if key == "" {
		return flightaware.FlightMetadata{}, false
	}
	e, ok := c.entries[key]
	if !ok || !c.fresh(e, now) {
		return flightaware.FlightMetadata{}, false
	}
	return e.meta, true
}

// Store inserts or replaces the entry for ident and resets its age.
func (c *Cache) Store(ident string, meta flightaware.FlightMetadata, now time.Time) {
	key := cacheKey(ident)
	if key == "" {
		return
	}
	c.entries[key] = cacheEntry{meta: meta, insertedAt: now}
}

func (c *Cache) fresh(e cacheEntry, now time.Time) bool {
	age := now.Sub(e.insertedAt)
	return age >= 0 && age <= c.ttl
}

func cacheKey(ident string) string {
	return strings.ToUpper(strings.TrimSpace(ident))
}
