package storage

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wbrown/dadacore/markov/annotations"
)

// Cache defaults, tuned for chain tables: a few dozen hot roots (the
// sentence start and common words) absorb most traffic
const (
	DefaultCacheSize        = 50
	DefaultCleanupThreshold = 60
	DefaultHitWeight        = 30 * time.Second
)

// CacheOptions configures a Cache
type CacheOptions struct {
	// TargetSize is the number of entries kept after an eviction pass
	TargetSize int
	// CleanupThreshold is the entry count that triggers an eviction pass.
	// Must be greater than TargetSize.
	CleanupThreshold int
	// HitWeight is how much later an entry's last access counts for each
	// hit, so frequently used keys outlive merely recent ones
	HitWeight time.Duration
	// Clock returns the current time; defaults to time.Now
	Clock func() time.Time
	// Handler receives cache events; nil disables them
	Handler annotations.Handler
}

// DefaultCacheOptions returns the default sizing and weight
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		TargetSize:       DefaultCacheSize,
		CleanupThreshold: DefaultCleanupThreshold,
		HitWeight:        DefaultHitWeight,
	}
}

// Validate checks the sizing invariants
func (o CacheOptions) Validate() error {
	if o.TargetSize < 1 {
		return fmt.Errorf("cache target size must be positive, got %d", o.TargetSize)
	}
	if o.CleanupThreshold <= o.TargetSize {
		return fmt.Errorf("cache cleanup threshold %d must exceed target size %d", o.CleanupThreshold, o.TargetSize)
	}
	if o.HitWeight < 0 {
		return fmt.Errorf("cache hit weight must not be negative, got %s", o.HitWeight)
	}
	return nil
}

// CacheStats reports cache activity since creation
type CacheStats struct {
	Size       int   // Resident entries
	Dirty      int   // Resident entries not yet written
	Hits       int64 // Gets served from memory
	Misses     int64 // Gets that read the store
	Evictions  int64 // Entries dropped by eviction passes
	WriteBacks int64 // Entries written to the store
}

// Cache is a write-back caching proxy in front of a Store.
//
// Reads are served from memory when possible; writes only mark an entry
// dirty. Dirty entries reach the store when they are evicted or when
// Flush is called. When the entry count reaches CleanupThreshold, entries
// are ranked by last access plus HitWeight per hit and all but the top
// TargetSize are written back (if dirty) and dropped.
//
// Cache is not safe for concurrent use.
type Cache struct {
	store   Store
	entries map[string]*cacheEntry
	opts    CacheOptions
	stats   CacheStats
}

type cacheEntry struct {
	value      []byte
	dirty      bool
	lastAccess time.Time
	hits       int
}

// NewCache wraps store with a write-back cache
func NewCache(store Store, opts CacheOptions) (*Cache, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		store:   store,
		entries: make(map[string]*cacheEntry, opts.CleanupThreshold),
		opts:    opts,
	}, nil
}

// Store returns the wrapped store
func (c *Cache) Store() Store {
	return c.store
}

// Get returns the value for key, reading through to the store on a miss.
// Returns ErrKeyNotFound if the key exists in neither.
func (c *Cache) Get(key []byte) ([]byte, error) {
	if e, ok := c.entries[string(key)]; ok {
		e.hits++
		e.lastAccess = c.opts.Clock()
		c.stats.Hits++
		c.emit(annotations.CacheHit, map[string]interface{}{"key": string(key)})
		return bytes.Clone(e.value), nil
	}

	value, err := c.store.Get(key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	c.stats.Misses++
	c.emit(annotations.CacheMiss, map[string]interface{}{"key": string(key)})

	c.entries[string(key)] = &cacheEntry{value: value, lastAccess: c.opts.Clock()}
	if err := c.cleanupIfThreshold(); err != nil {
		return nil, err
	}
	return bytes.Clone(value), nil
}

// Set records value for key in memory only. The entry keeps its hit count.
func (c *Cache) Set(key, value []byte) error {
	e, ok := c.entries[string(key)]
	if !ok {
		e = &cacheEntry{}
		c.entries[string(key)] = e
	}
	e.value = bytes.Clone(value)
	e.dirty = true
	e.lastAccess = c.opts.Clock()

	if ok {
		return nil
	}
	return c.cleanupIfThreshold()
}

// Contains reports whether key is cached or stored. It does not count as
// an access.
func (c *Cache) Contains(key []byte) (bool, error) {
	if _, ok := c.entries[string(key)]; ok {
		return true, nil
	}
	return c.store.Contains(key)
}

// Flush writes every dirty entry to the store in one batch and marks them
// clean. Nothing is evicted. On failure every entry stays dirty.
func (c *Cache) Flush() error {
	start := time.Now()

	var keys []string
	for key, e := range c.entries {
		if e.dirty {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if err := c.writeBack(keys); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	for _, key := range keys {
		c.entries[key].dirty = false
	}

	c.opts.Handler.Emit(annotations.CacheFlushed, start, map[string]interface{}{
		"written.count": len(keys),
	})
	return nil
}

// Len returns the number of resident entries
func (c *Cache) Len() int {
	return len(c.entries)
}

// Cached reports whether key is resident, without touching it
func (c *Cache) Cached(key []byte) bool {
	_, ok := c.entries[string(key)]
	return ok
}

// Stats returns a snapshot of cache activity
func (c *Cache) Stats() CacheStats {
	s := c.stats
	s.Size = len(c.entries)
	for _, e := range c.entries {
		if e.dirty {
			s.Dirty++
		}
	}
	return s
}

// Close flushes dirty entries and closes the wrapped store. The store is
// closed even when the flush fails; the flush error is returned first.
func (c *Cache) Close() error {
	flushErr := c.Flush()
	closeErr := c.store.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (c *Cache) cleanupIfThreshold() error {
	if len(c.entries) >= c.opts.CleanupThreshold {
		return c.cleanup()
	}
	return nil
}

// score ranks an entry for eviction; higher scores stay resident
func (c *Cache) score(e *cacheEntry) time.Time {
	return e.lastAccess.Add(time.Duration(e.hits) * c.opts.HitWeight)
}

// cleanup keeps the TargetSize best-scored entries and evicts the rest.
// Ties are broken by key so a pass is deterministic.
func (c *Cache) cleanup() error {
	start := time.Now()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		si, sj := c.score(c.entries[keys[i]]), c.score(c.entries[keys[j]])
		if !si.Equal(sj) {
			return si.After(sj)
		}
		return keys[i] < keys[j]
	})

	victims := keys[c.opts.TargetSize:]
	var dirty []string
	for _, key := range victims {
		if c.entries[key].dirty {
			dirty = append(dirty, key)
		}
	}

	if err := c.writeBack(dirty); err != nil {
		return fmt.Errorf("evict: %w", err)
	}
	for _, key := range victims {
		delete(c.entries, key)
	}
	c.stats.Evictions += int64(len(victims))

	c.opts.Handler.Emit(annotations.CacheEvicted, start, map[string]interface{}{
		"evicted.count": len(victims),
		"written.count": len(dirty),
		"size":          len(c.entries),
	})
	return nil
}

// writeBack stores the given resident entries as one batch
func (c *Cache) writeBack(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	batch := make([]Entry, len(keys))
	for i, key := range keys {
		batch[i] = Entry{Key: []byte(key), Value: c.entries[key].value}
	}

	start := time.Now()
	if err := WriteBatch(c.store, batch); err != nil {
		c.opts.Handler.Emit(annotations.CacheWriteErr, start, map[string]interface{}{
			"count": len(keys),
			"error": err.Error(),
		})
		return err
	}
	c.stats.WriteBacks += int64(len(keys))
	return nil
}

func (c *Cache) emit(name string, data map[string]interface{}) {
	if c.opts.Handler.Enabled() {
		c.opts.Handler.Emit(name, time.Now(), data)
	}
}
