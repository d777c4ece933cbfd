package storage

import (
	"bytes"
	"sort"
	"strings"
	"sync"
)

// MemoryStore implements Store with an in-memory map.
// Nothing survives the process; it backs tests and throwaway models.
type MemoryStore struct {
	mu   sync.RWMutex      // Protects concurrent access
	data map[string][]byte // Key-value storage

	closed bool
	writes int // Number of Set/SetBatch entries applied
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key
// Returns a copy of the value to prevent external modification
func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.data[string(key)]
	if !exists {
		return nil, ErrKeyNotFound
	}

	return bytes.Clone(value), nil
}

// Set stores a value with the given key
// Makes a copy of the value to prevent external modification
func (m *MemoryStore) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[string(key)] = bytes.Clone(value)
	m.writes++
	return nil
}

// SetBatch stores every entry under a single lock
func (m *MemoryStore) SetBatch(entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		m.data[string(e.Key)] = bytes.Clone(e.Value)
	}
	m.writes += len(entries)
	return nil
}

// Contains reports whether the key exists
func (m *MemoryStore) Contains(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.data[string(key)]
	return exists, nil
}

// Scan visits every key with the given prefix in ascending order
func (m *MemoryStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		if strings.HasPrefix(key, string(prefix)) {
			keys = append(keys, key)
		}
	}
	values := make(map[string][]byte, len(keys))
	for _, key := range keys {
		values[key] = bytes.Clone(m.data[key])
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, key := range keys {
		if err := fn([]byte(key), values[key]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of keys stored
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Writes returns how many entries were written since creation
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close marks the store closed. The data stays readable so tests can
// reopen a model on the same instance.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MemoryStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
