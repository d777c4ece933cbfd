package markov

import (
	"encoding/binary"
	"slices"
	"sort"
)

// Table is the second level of the chain: for one root (direction and
// boundary word) it maps each context of order-1 words to the
// continuations observed after it
type Table struct {
	entries map[string]*tableEntry
}

type tableEntry struct {
	context []string
	next    Transition
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{entries: make(map[string]*tableEntry)}
}

// ContextKey builds a collision-free map key for a context tuple.
// Each word is prefixed with its uvarint length.
func ContextKey(context []string) string {
	size := 0
	for _, w := range context {
		size += binary.MaxVarintLen64 + len(w)
	}
	buf := make([]byte, 0, size)
	for _, w := range context {
		buf = binary.AppendUvarint(buf, uint64(len(w)))
		buf = append(buf, w...)
	}
	return string(buf)
}

// Len returns the number of contexts stored
func (t *Table) Len() int {
	return len(t.entries)
}

// Get returns the transition recorded for context, Absent if none
func (t *Table) Get(context []string) Transition {
	if e, ok := t.entries[ContextKey(context)]; ok {
		return e.next
	}
	return Transition{}
}

// Set replaces the transition for context
func (t *Table) Set(context []string, next Transition) {
	key := ContextKey(context)
	if next.IsAbsent() {
		delete(t.entries, key)
		return
	}
	t.entries[key] = &tableEntry{context: slices.Clone(context), next: next}
}

// Learn merges word into the transition for context and reports whether
// the table changed
func (t *Table) Learn(context []string, word string) bool {
	current := t.Get(context)
	merged := current.Merge(word)
	if merged.Equal(current) {
		return false
	}
	t.Set(context, merged)
	return true
}

// Contexts returns every stored context in key order, so that a seeded
// random source picks the same context across runs
func (t *Table) Contexts() [][]string {
	keys := t.sortedKeys()
	out := make([][]string, len(keys))
	for i, k := range keys {
		out[i] = slices.Clone(t.entries[k].context)
	}
	return out
}

// Each calls fn for every context in key order
func (t *Table) Each(fn func(context []string, next Transition)) {
	for _, k := range t.sortedKeys() {
		e := t.entries[k]
		fn(e.context, e.next)
	}
}

// Equal reports whether both tables hold the same transitions
func (t *Table) Equal(other *Table) bool {
	if t.Len() != other.Len() {
		return false
	}
	for k, e := range t.entries {
		o, ok := other.entries[k]
		if !ok || !e.next.Equal(o.next) {
			return false
		}
	}
	return true
}

func (t *Table) sortedKeys() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
