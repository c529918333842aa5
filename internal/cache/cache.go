// Package cache provides the in-memory TTL cache shared by CoreHub services.
package cache

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/logger"
)

type entry struct {
	value     interface{}
	createdAt time.Time
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache counters.
// HitRatio is a percentage: hits / (hits + misses) * 100, or 0 before any lookup.
type Stats struct {
	Entries   int     `json:"entries"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
}

// Cache is a key-value store with per-entry TTL. Expired entries are evicted
// lazily on Get and in bulk by CleanupExpired; there is no size cap.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	hits       uint64
	misses     uint64
	evictions  uint64
	logger     *logger.Logger
}

// New creates a cache with the given default TTL, used when Set is called
// with a non-positive TTL.
func New(defaultTTL time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		logger:     log,
	}
}

// Get returns the value for key. A present but expired entry is removed,
// counted as one eviction and one miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.evictions++
		c.misses++
		return nil, false
	}

	c.hits++
	return e.value, true
}

// Set stores value under key, overwriting any existing entry. A non-positive
// ttl falls back to the cache default.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return ok
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. The compute function runs outside the cache lock.
func (c *Cache) GetOrCompute(key string, ttl time.Duration, compute func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// CleanupExpired removes every expired entry and returns how many were removed.
func (c *Cache) CleanupExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			c.evictions++
			removed++
		}
	}

	if removed > 0 {
		c.logger.Debug("Cache cleanup", zap.Int("removed", removed))
	}
	return removed
}

// InvalidatePattern removes all keys matching the regular expression and
// returns how many were removed.
func (c *Cache) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if re.MatchString(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRatio = float64(c.hits) / float64(total) * 100
	}
	return s
}

// RunCleanup sweeps expired entries on the given interval until stop is closed.
func (c *Cache) RunCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stop:
			return
		}
	}
}

// KeyFor builds a deterministic cache key from a function name and arguments.
// Map arguments are rendered with sorted keys so argument order never changes
// the key.
func KeyFor(name string, args ...interface{}) string {
	key := name
	for _, arg := range args {
		switch v := arg.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				key += fmt.Sprintf(":%s=%v", k, v[k])
			}
		default:
			key += fmt.Sprintf(":%v", v)
		}
	}
	return key
}
