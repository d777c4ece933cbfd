// Package annotations provides a low-overhead event stream for tracking
// what the chain engine and its cache are doing. Components accept an
// optional Handler; a nil handler disables collection entirely.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Model lifecycle
	StoreOpened = "store/opened"
	ModelSynced = "model/synced"
	ModelClosed = "model/closed"

	// Learning
	LearnSequence = "learn/sequence"
	LearnRejected = "learn/rejected"

	// Generation
	GenerateSeeded    = "generate/seeded"
	GenerateExpanded  = "generate/expanded"
	GenerateCompleted = "generate/completed"
	GenerateFailed    = "generate/failed"

	// Caching proxy
	CacheHit      = "cache/hit"
	CacheMiss     = "cache/miss"
	CacheEvicted  = "cache/evicted"
	CacheFlushed  = "cache/flushed"
	CacheWriteErr = "error/cache.write"
)

// Event represents a single annotation event
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Additional event-specific data
}

// Handler processes annotation events as they occur
type Handler func(event Event)

// Emit sends an event to h if it is non-nil
func (h Handler) Emit(name string, start time.Time, data map[string]interface{}) {
	if h == nil {
		return
	}
	end := time.Now()
	h(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Enabled reports whether events will be delivered
func (h Handler) Enabled() bool {
	return h != nil
}

// Fanout returns a handler delivering every event to each non-nil handler
func Fanout(handlers ...Handler) Handler {
	var live []Handler
	for _, h := range handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return func(event Event) {
		for _, h := range live {
			h(event)
		}
	}
}

// Collector accumulates events, mostly for tests and diagnostics.
// Thread-safe for concurrent access.
type Collector struct {
	handler Handler
	events  []Event
	mu      sync.Mutex
}

// NewCollector creates a collector that also forwards to handler, if any
func NewCollector(handler Handler) *Collector {
	return &Collector{
		handler: handler,
		events:  make([]Event, 0, 64),
	}
}

// Handler returns a Handler that records into the collector
func (c *Collector) Handler() Handler {
	return c.Add
}

// Add records a new event
func (c *Collector) Add(event Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	if c.handler != nil {
		c.handler(event)
	}
}

// Events returns all collected events
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Named returns the collected events with the given name
func (c *Collector) Named(name string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the collector for reuse
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
