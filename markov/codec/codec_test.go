package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/dadacore/markov"
)

func TestRootKey(t *testing.T) {
	assert.Equal(t, []byte(">cat"), RootKey(markov.Forward, "cat"))
	assert.Equal(t, []byte("<cat"), RootKey(markov.Backward, "cat"))
	assert.Equal(t, []byte(">"), RootKey(markov.Forward, markov.Sentinel))

	dir, word, ok := ParseRootKey([]byte("<héllo"))
	require.True(t, ok)
	assert.Equal(t, markov.Backward, dir)
	assert.Equal(t, "héllo", word)

	_, _, ok = ParseRootKey(ConfigKey)
	assert.False(t, ok)
}

func TestConfigRoundTrip(t *testing.T) {
	cfg, err := DecodeConfig(EncodeConfig(Config{Order: 4}))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Order)

	_, err = DecodeConfig([]byte{FormatVersion, 0})
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = DecodeConfig([]byte{9, 4})
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))
}

func TestTableRoundTrip(t *testing.T) {
	table := markov.NewTable()
	table.Learn([]string{"the", "cat"}, "sat")
	table.Learn([]string{"the", "cat"}, "ran")
	table.Learn([]string{"the", "cat"}, markov.Sentinel)
	table.Learn([]string{"a", "dog"}, markov.Sentinel)
	table.Learn([]string{"ünï", "cödé"}, "🙂")

	data := EncodeTable(table)
	decoded, err := DecodeTable(data)
	require.NoError(t, err)

	assert.True(t, table.Equal(decoded))
	assert.Equal(t, []string{"sat", "ran", markov.Sentinel}, decoded.Get([]string{"the", "cat"}).Words())
	assert.Equal(t, markov.Single, decoded.Get([]string{"a", "dog"}).Kind())

	// Encoding is deterministic
	assert.Equal(t, data, EncodeTable(decoded))
}

func TestTableEmptyContext(t *testing.T) {
	// Order 1 models have zero-word contexts
	table := markov.NewTable()
	table.Learn(nil, "x")
	table.Learn(nil, "y")

	decoded, err := DecodeTable(EncodeTable(table))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, decoded.Get(nil).Words())
}

func TestDecodeTableRejectsCorruption(t *testing.T) {
	table := markov.NewTable()
	table.Learn([]string{"a"}, "b")
	data := EncodeTable(table)

	_, err := DecodeTable(data[:len(data)-1])
	assert.True(t, errors.Is(err, ErrCorrupt), "truncated value: %v", err)

	_, err = DecodeTable(append(append([]byte{}, data...), 0))
	assert.True(t, errors.Is(err, ErrCorrupt), "trailing bytes: %v", err)

	_, err = DecodeTable(nil)
	assert.True(t, errors.Is(err, ErrCorrupt))

	// Kind byte claims Many but only one word follows
	bad := []byte{FormatVersion, 1, 1, 1, 'a', byte(markov.Many), 1, 1, 'b'}
	_, err = DecodeTable(bad)
	assert.True(t, errors.Is(err, ErrCorrupt))
}
