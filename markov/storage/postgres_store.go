package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the chain in a PostgreSQL table, letting several
// hosts share one model (each still needs its own exclusive lock, see
// brain.Brain).
type PostgresStore struct {
	pool    *pgxpool.Pool
	table   string
	timeout time.Duration
}

// DefaultPostgresTable is the table used when the caller names none
const DefaultPostgresTable = "markov_chain"

// NewPostgresStore connects to databaseURL and creates the table if needed.
// Every operation runs under its own timeout since the Store interface
// carries no context.
func NewPostgresStore(ctx context.Context, databaseURL, table string) (*PostgresStore, error) {
	if table == "" {
		table = DefaultPostgresTable
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, table: pgx.Identifier{table}.Sanitize(), timeout: 10 * time.Second}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key BYTEA PRIMARY KEY,
		value BYTEA NOT NULL
	)`, s.table)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init schema failed on %q: %w", stmt, err)
	}
	return nil
}

func (s *PostgresStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get retrieves a value by key
func (s *PostgresStore) Get(key []byte) ([]byte, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	var value []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, s.table)
}

// Set upserts a single value
func (s *PostgresStore) Set(key, value []byte) error {
	ctx, cancel := s.opContext()
	defer cancel()

	if _, err := s.pool.Exec(ctx, s.upsertSQL(), key, value); err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

// SetBatch upserts every entry inside one transaction
func (s *PostgresStore) SetBatch(entries []Entry) error {
	ctx, cancel := s.opContext()
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres begin: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	batch := &pgx.Batch{}
	sql := s.upsertSQL()
	for _, e := range entries {
		batch.Queue(sql, e.Key, e.Value)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres batch of %d: %w", len(entries), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres commit: %w", err)
	}
	return nil
}

// Contains reports whether the key exists
func (s *PostgresStore) Contains(key []byte) (bool, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1)`, s.table), key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres contains %q: %w", key, err)
	}
	return exists, nil
}

// Scan visits every key with the given prefix in ascending order
func (s *PostgresStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	ctx, cancel := s.opContext()
	defer cancel()

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT key, value FROM %s WHERE key >= $1 ORDER BY key`, s.table), prefix)
	if err != nil {
		return fmt.Errorf("postgres scan: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("postgres scan row: %w", err)
		}
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
