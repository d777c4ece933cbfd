package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownBackend is returned when a backend name is not registered.
// It is a construction-time failure: the model cannot be created.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend names accepted by Open
const (
	BackendBadger   = "badger"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// DefaultBackend is used when no backend is configured
const DefaultBackend = BackendBadger

type opener func(ctx context.Context, location string) (Store, error)

var backends = map[string]opener{
	BackendBadger: func(_ context.Context, location string) (Store, error) {
		return NewBadgerStore(location)
	},
	BackendSQLite: func(_ context.Context, location string) (Store, error) {
		return NewSQLiteStore(location)
	},
	BackendPostgres: func(ctx context.Context, location string) (Store, error) {
		return NewPostgresStore(ctx, location, DefaultPostgresTable)
	},
	BackendMemory: func(context.Context, string) (Store, error) {
		return NewMemoryStore(), nil
	},
}

// Backends lists the registered backend names
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the named backend at location: a directory for badger, a
// file for sqlite, a connection URL for postgres; ignored for memory.
func Open(ctx context.Context, backend, location string) (Store, error) {
	name := strings.ToLower(strings.TrimSpace(backend))
	if name == "" {
		name = DefaultBackend
	}
	open, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownBackend, backend, strings.Join(Backends(), ", "))
	}
	store, err := open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", name, err)
	}
	return store, nil
}
