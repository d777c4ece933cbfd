package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens or creates a BadgerDB-backed store in dir
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable BadgerDB logs

	// Chain tables are small and read far more often than written
	opts.MemTableSize = 32 << 20   // 32MB memtables (default 64MB)
	opts.BlockCacheSize = 64 << 20 // 64MB block cache for faster reads
	opts.IndexCacheSize = 16 << 20 // 16MB index cache
	opts.ValueThreshold = 1 << 10  // 1KB - store small values in LSM tree

	return openBadger(opts)
}

// NewInMemoryBadgerStore creates a BadgerDB store that never touches disk
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get retrieves a single value by key
func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var result []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %q: %w", key, err)
	}
	return result, nil
}

// Set writes a single value in its own transaction
func (s *BadgerStore) Set(key, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badger set %q: %w", key, err)
	}
	return nil
}

// SetBatch writes every entry in one transaction, falling back to a
// WriteBatch when the set is too large for a single transaction
func (s *BadgerStore) SetBatch(entries []Entry) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Set(e.Key, e.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return s.setLargeBatch(entries)
	}
	if err != nil {
		return fmt.Errorf("badger batch of %d: %w", len(entries), err)
	}
	return nil
}

func (s *BadgerStore) setLargeBatch(entries []Entry) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range entries {
		if err := wb.Set(e.Key, e.Value); err != nil {
			return fmt.Errorf("badger write batch: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger write batch flush: %w", err)
	}
	return nil
}

// Contains checks for a key without fetching its value
func (s *BadgerStore) Contains(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger contains %q: %w", key, err)
	}
	return true, nil
}

// Scan iterates every key with the given prefix in key order
func (s *BadgerStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 1000
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Sync forces buffered writes to disk
func (s *BadgerStore) Sync() error {
	return s.db.Sync()
}

// Close closes the store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
