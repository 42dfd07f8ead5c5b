package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ft-ledger/internal/storage"
)

const upsertEntrySQL = `
	INSERT INTO ledger_entries (key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE
	SET value = EXCLUDED.value,
	    updated_at = NOW()
`

// Store is a PostgreSQL implementation of storage.Store.
// Entries live in a single ledger_entries(key, value) table.
type Store struct {
	pool *Pool
}

// NewStore creates a new PostgreSQL key-value store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the value stored under key. Returns ErrNotFound if not exists.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT value
		FROM ledger_entries
		WHERE key = $1
	`, key)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}

	return value, nil
}

// Set stores value under key using an upsert.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if key == "" || value == nil {
		return storage.ErrInvalidInput
	}

	if _, err := s.pool.Exec(ctx, upsertEntrySQL, key, value); err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("set ledger entry: %w", err)
	}
	return nil
}

// Apply upserts all writes inside one transaction.
func (s *Store) Apply(ctx context.Context, writes []storage.Write) error {
	if err := storage.ValidateWrites(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, w := range writes {
			batch.Queue(upsertEntrySQL, w.Key, w.Value)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("apply ledger entries: %w", err)
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
