package hiscore

import (
	"strings"
	"sync"
	"time"

	"github.com/varrock/clogboard/internal/domain/score"
)

// defaultCacheTTL matches the hiscore source's refresh cadence.
const defaultCacheTTL = time.Hour

// Cache memoizes successful lookups for a fixed TTL. It lives only in
// process memory and is owned by the Fetcher; failures are never stored.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	capturedAt time.Time
	result     score.Result
}

// NewCache creates an empty cache with the given TTL.
func NewCache(ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c := &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the cached result for player if a non-expired entry exists.
func (c *Cache) Get(player string) (score.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey(player)]
	if !ok {
		return score.Result{}, false
	}
	if c.now().Sub(e.capturedAt) >= c.ttl {
		delete(c.entries, cacheKey(player))
		return score.Result{}, false
	}
	return e.result, true
}

// Put stores a successful lookup result for player.
func (c *Cache) Put(player string, r score.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(player)] = cacheEntry{capturedAt: c.now(), result: r}
}

// Len reports the number of live entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey normalizes player names; the hiscore source is case-insensitive.
func cacheKey(player string) string {
	return strings.ToLower(player)
}
