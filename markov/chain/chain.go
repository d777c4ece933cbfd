// Package chain is the engine's view of persisted state: a forward and a
// backward namespace, each mapping a boundary word to a table of
// context → transition. All reads and writes go through a KV, normally
// the write-back cache.
package chain

import (
	"errors"
	"fmt"

	"github.com/wbrown/dadacore/markov"
	"github.com/wbrown/dadacore/markov/codec"
	"github.com/wbrown/dadacore/markov/storage"
)

// KV is the key-value surface the chain needs; storage.Cache satisfies it
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Contains(key []byte) (bool, error)
}

// Store reads and writes chain tables for one model
type Store struct {
	kv      KV
	order   int
	created bool
}

// Open loads the model configuration from kv, writing it on first use.
// An existing model keeps its persisted order regardless of the order
// requested; order <= 0 selects markov.DefaultOrder for a new model.
func Open(kv KV, order int) (*Store, error) {
	exists, err := kv.Contains(codec.ConfigKey)
	if err != nil {
		return nil, fmt.Errorf("check config: %w", err)
	}

	if exists {
		data, err := kv.Get(codec.ConfigKey)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		cfg, err := codec.DecodeConfig(data)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		return &Store{kv: kv, order: cfg.Order}, nil
	}

	if order <= 0 {
		order = markov.DefaultOrder
	}
	if err := kv.Set(codec.ConfigKey, codec.EncodeConfig(codec.Config{Order: order})); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}
	return &Store{kv: kv, order: order, created: true}, nil
}

// Order returns the model's context window size
func (s *Store) Order() int {
	return s.order
}

// Created reports whether Open initialised a new model
func (s *Store) Created() bool {
	return s.created
}

// Table returns the table stored under a root. ok is false when the
// boundary was never learned in that direction.
func (s *Store) Table(dir markov.Direction, boundary string) (table *markov.Table, ok bool, err error) {
	data, err := s.kv.Get(codec.RootKey(dir, boundary))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s root %q: %w", dir, boundary, err)
	}
	table, err = codec.DecodeTable(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s root %q: %w", dir, boundary, err)
	}
	return table, true, nil
}

// PutTable replaces the table stored under a root
func (s *Store) PutTable(dir markov.Direction, boundary string, table *markov.Table) error {
	if err := s.kv.Set(codec.RootKey(dir, boundary), codec.EncodeTable(table)); err != nil {
		return fmt.Errorf("write %s root %q: %w", dir, boundary, err)
	}
	return nil
}

// Record merges word into the transition for (dir, boundary, context),
// creating the root on first use. It writes only when the table changed
// and reports whether it did.
func (s *Store) Record(dir markov.Direction, boundary string, context []string, word string) (bool, error) {
	if len(context) != s.order-1 {
		return false, fmt.Errorf("context has %d words, order %d needs %d", len(context), s.order, s.order-1)
	}

	table, ok, err := s.Table(dir, boundary)
	if err != nil {
		return false, err
	}
	if !ok {
		table = markov.NewTable()
	}
	if !table.Learn(context, word) {
		return false, nil
	}
	return true, s.PutTable(dir, boundary, table)
}

// Lookup returns the transition for a context under a root, Absent when
// either level is missing
func (s *Store) Lookup(dir markov.Direction, boundary string, context []string) (markov.Transition, error) {
	table, ok, err := s.Table(dir, boundary)
	if err != nil || !ok {
		return markov.Transition{}, err
	}
	return table.Get(context), nil
}
