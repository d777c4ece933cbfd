// Package engine implements the bidirectional Markov chain model: learning
// token sequences into forward and backward chains, and generating new
// sequences from them.
package engine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/wbrown/dadacore/markov/annotations"
	"github.com/wbrown/dadacore/markov/chain"
	"github.com/wbrown/dadacore/markov/storage"
)

// Options configures a Model
type Options struct {
	// Order is the context window size for a new model. An existing model
	// keeps the order it was created with. Zero selects markov.DefaultOrder.
	Order int
	// Cache sizes the write-back cache; the zero value selects the defaults
	Cache storage.CacheOptions
	// Rand drives every random choice; nil seeds one from the clock
	Rand *rand.Rand
	// Handler receives model and cache events; nil disables them
	Handler annotations.Handler
}

// Model is a bidirectional chain backed by a cached persistent store.
// It is not safe for concurrent use.
type Model struct {
	cache   *storage.Cache
	chain   *chain.Store
	rng     *rand.Rand
	handler annotations.Handler
	closed  bool
}

// Open wraps store in a write-back cache and loads or initialises the
// model it holds. The model owns store from here on; Close closes it.
func Open(store storage.Store, opts Options) (*Model, error) {
	if opts.Order < 0 {
		return nil, fmt.Errorf("order must be positive, got %d", opts.Order)
	}

	cacheOpts := opts.Cache
	if cacheOpts.TargetSize == 0 && cacheOpts.CleanupThreshold == 0 {
		defaults := storage.DefaultCacheOptions()
		defaults.Clock = cacheOpts.Clock
		if cacheOpts.HitWeight > 0 {
			defaults.HitWeight = cacheOpts.HitWeight
		}
		cacheOpts = defaults
	}
	if cacheOpts.Handler == nil {
		cacheOpts.Handler = opts.Handler
	}
	cache, err := storage.NewCache(store, cacheOpts)
	if err != nil {
		return nil, err
	}

	cs, err := chain.Open(cache, opts.Order)
	if err != nil {
		return nil, err
	}
	if cs.Created() {
		// Persist the configuration immediately so a crash before the
		// first sync does not lose the chosen order
		if err := cache.Flush(); err != nil {
			return nil, err
		}
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Model{
		cache:   cache,
		chain:   cs,
		rng:     rng,
		handler: opts.Handler,
	}, nil
}

// Order returns the model's context window size
func (m *Model) Order() int {
	return m.chain.Order()
}

// CacheStats reports write-back cache activity
func (m *Model) CacheStats() storage.CacheStats {
	return m.cache.Stats()
}

// Summary flushes pending writes and counts what the store holds.
// ok is false when the backend cannot be scanned.
func (m *Model) Summary() (sum chain.Summary, ok bool, err error) {
	scanner, ok := m.cache.Store().(storage.Scanner)
	if !ok {
		return chain.Summary{}, false, nil
	}
	if err := m.cache.Flush(); err != nil {
		return chain.Summary{}, true, err
	}
	sum, err = chain.Survey(scanner)
	return sum, true, err
}

// Sync writes every dirty table to the store
func (m *Model) Sync() error {
	start := time.Now()
	if err := m.cache.Flush(); err != nil {
		return err
	}
	if syncer, ok := m.cache.Store().(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			return fmt.Errorf("sync store: %w", err)
		}
	}
	m.handler.Emit(annotations.ModelSynced, start, nil)
	return nil
}

// Close syncs the model and releases the store. Close is idempotent.
func (m *Model) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	start := time.Now()
	err := m.cache.Close()
	m.handler.Emit(annotations.ModelClosed, start, nil)
	return err
}
