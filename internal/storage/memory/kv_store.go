package memory

import (
	"context"
	"sync"

	"ft-ledger/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStore creates a new in-memory key-value store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Get returns a copy of the value stored under key. Returns ErrNotFound if not exists.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyBytes(v), nil
}

// Set stores a copy of value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.Apply(ctx, []storage.Write{{Key: key, Value: value}})
}

// Apply stores all writes under a single lock so readers never observe a partial batch.
func (s *Store) Apply(_ context.Context, writes []storage.Write) error {
	if err := storage.ValidateWrites(writes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		s.data[w.Key] = copyBytes(w.Value)
	}
	return nil
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ storage.Store = (*Store)(nil)
