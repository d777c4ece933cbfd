package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share
func exerciseStore(t *testing.T, store Store) {
	t.Helper()

	t.Run("MissingKey", func(t *testing.T) {
		_, err := store.Get([]byte(">nothing"))
		assert.True(t, errors.Is(err, ErrKeyNotFound), "got %v", err)

		ok, err := store.Contains([]byte(">nothing"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		require.NoError(t, store.Set([]byte(">cat"), []byte("v1")))
		value, err := store.Get([]byte(">cat"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), value)

		require.NoError(t, store.Set([]byte(">cat"), []byte("v2")))
		value, err = store.Get([]byte(">cat"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), value)

		ok, err := store.Contains([]byte(">cat"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("CallerBuffersNotRetained", func(t *testing.T) {
		buf := []byte("original")
		require.NoError(t, store.Set([]byte(">buf"), buf))
		copy(buf, "XXXXXXXX")

		value, err := store.Get([]byte(">buf"))
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), value)
	})

	t.Run("BatchAndScan", func(t *testing.T) {
		err := WriteBatch(store, []Entry{
			{Key: []byte("<b"), Value: []byte("2")},
			{Key: []byte("<a"), Value: []byte("1")},
			{Key: []byte("<"), Value: []byte("0")},
		})
		require.NoError(t, err)

		scanner, ok := store.(Scanner)
		if !ok {
			return
		}
		var keys, values []string
		err = scanner.Scan([]byte("<"), func(key, value []byte) error {
			keys = append(keys, string(key))
			values = append(values, string(value))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"<", "<a", "<b"}, keys)
		assert.Equal(t, []string{"0", "1", "2"}, values)

		stop := errors.New("stop")
		seen := 0
		err = scanner.Scan([]byte("<"), func(key, value []byte) error {
			seen++
			return stop
		})
		assert.True(t, errors.Is(err, stop))
		assert.Equal(t, 1, seen)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)
	assert.Greater(t, store.Writes(), 0)
	require.NoError(t, store.Close())
	assert.True(t, store.Closed())
}

func TestBadgerStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStore(dir)
	require.NoError(t, err)
	exerciseStore(t, store)
	require.NoError(t, store.Sync())
	require.NoError(t, store.Close())

	// Data survives reopening the directory
	store, err = NewBadgerStore(dir)
	require.NoError(t, err)
	defer store.Close()

	value, err := store.Get([]byte(">cat"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
}

func TestInMemoryBadgerStore(t *testing.T) {
	store, err := NewInMemoryBadgerStore()
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	exerciseStore(t, store)
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	value, err := store.Get([]byte("<a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DADA_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("DADA_TEST_POSTGRES_URL not set")
	}

	store, err := NewPostgresStore(context.Background(), url, "markov_chain_test")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.pool.Exec(context.Background(), "TRUNCATE "+store.table)
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(ctx, " SQLite ", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	store, err = Open(ctx, "", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, store, "badger is the default backend")
	require.NoError(t, store.Close())

	_, err = Open(ctx, "tokyocabinet", "markovdb")
	assert.True(t, errors.Is(err, ErrUnknownBackend))
	assert.Contains(t, err.Error(), "badger")

	assert.Equal(t, []string{"badger", "memory", "postgres", "sqlite"}, Backends())
}
