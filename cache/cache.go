// Package cache provides an LRU resource cache for expensive visual
// resources (rendered sprites, scaled assets), with age and
// memory-pressure eviction.
//
// The cache is driven by the cooperative frame tick: Get and Sweep must
// be called from the tick goroutine. The only asynchronous boundary is
// resource production inside the miss path, which is bounded by the
// caller-supplied context; duplicate concurrent production for a key is
// prevented by a loading placeholder rather than a lock.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"
)

// Default cache configuration constants.
const (
	// DefaultMaxBytes is the default memory budget (64 MB).
	DefaultMaxBytes = 64 * 1024 * 1024

	// DefaultMaxAge is the default entry age threshold for eviction.
	DefaultMaxAge = 60 * time.Second

	// DefaultBudgetFraction is the fraction of MaxBytes the sweep
	// evicts down to once the budget is exceeded.
	DefaultBudgetFraction = 0.8
)

// Sentinel errors.
var (
	// ErrStillLoading is returned when Get re-enters a key whose
	// producer is already running.
	ErrStillLoading = errors.New("cache: resource is still loading")
)

// Producer creates the resource for a missing key. It reports the value
// and an estimated memory size in bytes. Production failure clears the
// placeholder; the next Get for the key retries.
type Producer[V any] func(ctx context.Context) (value V, size int64, err error)

// entry is a single cached resource.
type entry[V any] struct {
	key      string
	value    V
	size     int64
	lastUsed time.Time
	usage    uint64
	loading  bool
}

// Cache memoizes expensive resources by string key.
// It is not safe for concurrent use; all access happens on the frame
// tick. Statistics counters are atomic so monitors may read them from
// anywhere.
type Cache[V any] struct {
	entries map[string]*entry[V]
	size    int64

	maxBytes       int64
	maxAge         time.Duration
	budgetFraction float64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// Option configures a Cache.
type Option func(*config)

type config struct {
	maxBytes       int64
	maxAge         time.Duration
	budgetFraction float64
}

// WithMaxBytes sets the memory budget in bytes.
// Non-positive values restore the default.
func WithMaxBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithMaxAge sets the age threshold beyond which unused entries are
// evicted by Sweep.
func WithMaxAge(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithBudgetFraction sets the fraction of the budget the sweep evicts
// down to. Values outside (0,1] restore the default.
func WithBudgetFraction(f float64) Option {
	return func(c *config) {
		if f > 0 && f <= 1 {
			c.budgetFraction = f
		}
	}
}

// New creates a resource cache.
func New[V any](opts ...Option) *Cache[V] {
	cfg := config{
		maxBytes:       DefaultMaxBytes,
		maxAge:         DefaultMaxAge,
		budgetFraction: DefaultBudgetFraction,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cache[V]{
		entries:        make(map[string]*entry[V]),
		maxBytes:       cfg.maxBytes,
		maxAge:         cfg.maxAge,
		budgetFraction: cfg.budgetFraction,
	}
}

// Get returns the cached resource for key, producing it on a miss.
//
// A hit updates the entry's last-used time and usage count. A miss
// installs a loading placeholder before invoking produce, so a re-entrant
// Get for the same key fails with ErrStillLoading instead of producing
// twice. On producer failure the placeholder is removed and the error is
// returned wrapped; the next Get retries. Production is bounded by ctx;
// expiry is treated as failure.
func (c *Cache[V]) Get(ctx context.Context, key string, now time.Time, produce Producer[V]) (V, error) {
	if e, ok := c.entries[key]; ok {
		if e.loading {
			var zero V
			return zero, ErrStillLoading
		}
		e.lastUsed = now
		e.usage++
		c.hits.Add(1)
		return e.value, nil
	}

	c.misses.Add(1)
	placeholder := &entry[V]{key: key, lastUsed: now, loading: true}
	c.entries[key] = placeholder

	// A panicking producer must not leak a permanent loading
	// placeholder; clear it and let the panic continue to the caller's
	// isolation boundary.
	defer func() {
		if r := recover(); r != nil {
			delete(c.entries, key)
			panic(r)
		}
	}()

	value, size, err := produce(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		delete(c.entries, key)
		var zero V
		return zero, fmt.Errorf("cache: producing %q: %w", key, err)
	}

	placeholder.value = value
	placeholder.size = size
	placeholder.loading = false
	placeholder.usage = 1
	placeholder.lastUsed = now
	c.size += size
	return value, nil
}

// Peek returns the resource without counting a hit or refreshing the
// last-used time. Loading placeholders report false.
func (c *Cache[V]) Peek(key string) (V, bool) {
	if e, ok := c.entries[key]; ok && !e.loading {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Usage returns the usage count for a key (0 when absent or loading).
func (c *Cache[V]) Usage(key string) uint64 {
	if e, ok := c.entries[key]; ok && !e.loading {
		return e.usage
	}
	return 0
}

// Delete removes an entry. Loading placeholders cannot be deleted.
// Returns true if an entry was removed.
func (c *Cache[V]) Delete(key string) bool {
	e, ok := c.entries[key]
	if !ok || e.loading {
		return false
	}
	c.size -= e.size
	delete(c.entries, key)
	return true
}

// Clear removes all non-loading entries.
func (c *Cache[V]) Clear() {
	for key, e := range c.entries {
		if e.loading {
			continue
		}
		c.size -= e.size
		delete(c.entries, key)
	}
}

// Len returns the number of entries, including loading placeholders.
func (c *Cache[V]) Len() int {
	return len(c.entries)
}

// Size returns the total estimated memory of cached resources in bytes.
func (c *Cache[V]) Size() int64 {
	return c.size
}

// MaxBytes returns the configured memory budget.
func (c *Cache[V]) MaxBytes() int64 {
	return c.maxBytes
}

// Sweep evicts entries by age and memory pressure. It runs periodically
// (the performance monitor schedules it), never on the Get path.
//
// Candidates are visited oldest-used first. An entry is evicted while it
// exceeds the max-age threshold, or while the running total exceeds the
// budget fraction of MaxBytes. Loading placeholders are never evicted.
// Returns the number of evicted entries.
func (c *Cache[V]) Sweep(now time.Time) int {
	budget := int64(float64(c.maxBytes) * c.budgetFraction)

	candidates := make([]*entry[V], 0, len(c.entries))
	for _, e := range c.entries {
		if e.loading {
			continue
		}
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].lastUsed.Equal(candidates[j].lastUsed) {
			return candidates[i].lastUsed.Before(candidates[j].lastUsed)
		}
		// Stable order for equal timestamps.
		return candidates[i].key < candidates[j].key
	})

	evicted := 0
	for _, e := range candidates {
		expired := now.Sub(e.lastUsed) > c.maxAge
		pressured := c.size > budget
		if !expired && !pressured {
			break
		}
		c.size -= e.size
		delete(c.entries, e.key)
		evicted++
	}
	if evicted > 0 {
		c.evictions.Add(uint64(evicted))
	}
	return evicted
}

// Stats contains cache statistics.
type Stats struct {
	// Entries is the current number of entries.
	Entries int
	// Size is the estimated cached memory in bytes.
	Size int64
	// MaxBytes is the memory budget in bytes.
	MaxBytes int64
	// Hits is the number of cache hits.
	Hits uint64
	// Misses is the number of cache misses.
	Misses uint64
	// HitRate is the cache hit rate, 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of evicted entries.
	Evictions uint64
}

// Stats returns a snapshot of cache statistics.
func (c *Cache[V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{
		Entries:   len(c.entries),
		Size:      c.size,
		MaxBytes:  c.maxBytes,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
