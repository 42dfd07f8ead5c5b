package storage

import (
	"context"

	"ft-ledger/internal/domain"
)

// Write is a single key/value assignment applied by Store.Apply.
type Write struct {
	Key   string
	Value []byte
}

// Store is the persistent key-value map backing the ledger.
// Keys are opaque strings; values are opaque byte slices owned by the caller after return.
type Store interface {
	// Get returns the value stored under key. Returns ErrNotFound if the key has no entry.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, creating the entry if needed.
	Set(ctx context.Context, key string, value []byte) error

	// Apply stores all writes atomically: either every write becomes visible or none does.
	Apply(ctx context.Context, writes []Write) error
}

// EventStore provides access to the token event archive.
type EventStore interface {
	// InsertBulk adds records atomically. Returns ErrDuplicateKey if any (event_id, index) exists.
	InsertBulk(ctx context.Context, records []*domain.EventRecord) error

	// GetByEventID retrieves all records of an event, ordered by index ASC.
	GetByEventID(ctx context.Context, eventID string) ([]*domain.EventRecord, error)

	// GetByAccount retrieves records where the account is owner or receiver, ordered by nonce, index ASC.
	GetByAccount(ctx context.Context, account domain.AccountID) ([]*domain.EventRecord, error)
}
