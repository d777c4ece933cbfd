package storage

import (
	"errors"
)

// ErrKeyNotFound is returned when a key doesn't exist in the store
var ErrKeyNotFound = errors.New("key not found")

// Store is the persistent byte-keyed mapping the chain is kept in.
// Keys and values are opaque to the store. Implementations copy values on
// the way in and out, so callers may reuse their buffers.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if the key doesn't exist.
	Get(key []byte) ([]byte, error)

	// Set stores a value, overwriting any previous one
	Set(key, value []byte) error

	// Contains reports whether the key exists
	Contains(key []byte) (bool, error)

	// Close releases the store. Pending writes are durable once it returns.
	Close() error
}

// Entry is one key-value pair of a batched write
type Entry struct {
	Key   []byte
	Value []byte
}

// BatchWriter is implemented by stores that can apply several writes
// atomically. Either every entry is stored or none is.
type BatchWriter interface {
	SetBatch(entries []Entry) error
}

// Scanner is implemented by stores that can enumerate keys by prefix.
// Keys are visited in ascending byte order.
type Scanner interface {
	Scan(prefix []byte, fn func(key, value []byte) error) error
}

// WriteBatch stores entries atomically when the store supports it and
// one at a time otherwise
func WriteBatch(s Store, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if bw, ok := s.(BatchWriter); ok {
		return bw.SetBatch(entries)
	}
	for _, e := range entries {
		if err := s.Set(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}
