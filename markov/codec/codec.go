// Package codec converts chain structures to and from the opaque byte
// strings kept by a persistent store. Every encoded value starts with a
// format version byte so the layout can be recognised on reopen.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/wbrown/dadacore/markov"
)

// FormatVersion is written as the first byte of every encoded value
const FormatVersion byte = 1

// ConfigKey is the reserved key holding the model configuration.
// Root keys always start with '>' or '<', so it cannot clash with one.
var ConfigKey = []byte(".config")

var (
	// ErrCorrupt is returned when a stored value cannot be decoded
	ErrCorrupt = errors.New("corrupt encoded value")

	// ErrUnsupportedVersion is returned for values written by an unknown format
	ErrUnsupportedVersion = errors.New("unsupported encoding version")
)

// Config is the persisted model configuration
type Config struct {
	Order int
}

// RootKey builds the first-level key for a direction and boundary word.
// The Sentinel encodes as the bare direction prefix.
func RootKey(dir markov.Direction, word string) []byte {
	key := make([]byte, 0, 1+len(word))
	key = append(key, dir.Prefix())
	return append(key, word...)
}

// ParseRootKey splits a root key into its direction and boundary word
func ParseRootKey(key []byte) (markov.Direction, string, bool) {
	if len(key) == 0 {
		return 0, "", false
	}
	switch key[0] {
	case markov.Forward.Prefix():
		return markov.Forward, string(key[1:]), true
	case markov.Backward.Prefix():
		return markov.Backward, string(key[1:]), true
	default:
		return 0, "", false
	}
}

// EncodeConfig serializes the model configuration
func EncodeConfig(cfg Config) []byte {
	buf := []byte{FormatVersion}
	return binary.AppendUvarint(buf, uint64(cfg.Order))
}

// DecodeConfig deserializes the model configuration
func DecodeConfig(data []byte) (Config, error) {
	r, err := newReader(data)
	if err != nil {
		return Config{}, err
	}
	order, err := r.uvarint()
	if err != nil {
		return Config{}, fmt.Errorf("config order: %w", err)
	}
	if order == 0 {
		return Config{}, fmt.Errorf("%w: order must be positive", ErrCorrupt)
	}
	if err := r.done(); err != nil {
		return Config{}, err
	}
	return Config{Order: int(order)}, nil
}

// EncodeTable serializes a root's table. Contexts are written in key
// order, so equal tables always encode to equal bytes.
//
// Layout:
//
//	version | count | { ctxLen | word* | kind | n | word* }*
//
// where every word is a uvarint length followed by its UTF-8 bytes.
func EncodeTable(table *markov.Table) []byte {
	buf := []byte{FormatVersion}
	buf = binary.AppendUvarint(buf, uint64(table.Len()))
	table.Each(func(context []string, next markov.Transition) {
		buf = appendWords(buf, context)
		buf = append(buf, byte(next.Kind()))
		buf = appendWords(buf, next.Words())
	})
	return buf
}

// DecodeTable deserializes a root's table
func DecodeTable(data []byte) (*markov.Table, error) {
	r, err := newReader(data)
	if err != nil {
		return nil, err
	}
	count, err := r.uvarint()
	if err != nil {
		return nil, fmt.Errorf("table size: %w", err)
	}

	table := markov.NewTable()
	for i := uint64(0); i < count; i++ {
		context, err := r.words()
		if err != nil {
			return nil, fmt.Errorf("entry %d context: %w", i, err)
		}
		kind, err := r.byte()
		if err != nil {
			return nil, fmt.Errorf("entry %d kind: %w", i, err)
		}
		words, err := r.words()
		if err != nil {
			return nil, fmt.Errorf("entry %d continuations: %w", i, err)
		}
		next := markov.NewMany(words...)
		if next.Kind() != markov.TransitionKind(kind) || next.Len() != len(words) {
			return nil, fmt.Errorf("%w: entry %d has kind %d with %d words", ErrCorrupt, i, kind, len(words))
		}
		table.Set(context, next)
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return table, nil
}

func appendWords(buf []byte, words []string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(words)))
	for _, w := range words {
		buf = binary.AppendUvarint(buf, uint64(len(w)))
		buf = append(buf, w...)
	}
	return buf
}

// reader walks an encoded value, failing with ErrCorrupt on truncation
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) (*reader, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrCorrupt)
	}
	if data[0] != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[0])
	}
	return &reader{data: data, pos: 1}, nil
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("%w: unexpected end of data", ErrCorrupt)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad varint at offset %d", ErrCorrupt, r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *reader) words() ([]string, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.data)-r.pos) {
		return nil, fmt.Errorf("%w: word count %d exceeds data", ErrCorrupt, n)
	}
	words := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		size, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		if size > uint64(len(r.data)-r.pos) {
			return nil, fmt.Errorf("%w: word length %d exceeds data", ErrCorrupt, size)
		}
		w := r.data[r.pos : r.pos+int(size)]
		if !utf8.Valid(w) {
			return nil, fmt.Errorf("%w: invalid UTF-8 at offset %d", ErrCorrupt, r.pos)
		}
		words = append(words, string(w))
		r.pos += int(size)
	}
	return words, nil
}

func (r *reader) done() error {
	if r.pos != len(r.data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(r.data)-r.pos)
	}
	return nil
}
