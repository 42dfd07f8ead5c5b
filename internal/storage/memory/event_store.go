package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu      sync.RWMutex
	records []*domain.EventRecord
	keys    map[string]struct{} // event_id|index
}

// NewEventStore creates a new in-memory event archive.
func NewEventStore() *EventStore {
	return &EventStore{
		keys: make(map[string]struct{}),
	}
}

// InsertBulk adds records atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, records []*domain.EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.EventID == "" {
			return storage.ErrInvalidInput
		}
		key := recordKey(r)
		if _, exists := s.keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[key]; exists {
			return storage.ErrDuplicateKey
		}
		batch[key] = struct{}{}
	}

	for _, r := range records {
		s.records = append(s.records, r.Clone())
		s.keys[recordKey(r)] = struct{}{}
	}
	return nil
}

// GetByEventID retrieves all records of an event, ordered by index ASC.
func (s *EventStore) GetByEventID(_ context.Context, eventID string) ([]*domain.EventRecord, error) {
	return s.filter(func(r *domain.EventRecord) bool { return r.EventID == eventID }), nil
}

// GetByAccount retrieves records touching the account, ordered by nonce, index ASC.
func (s *EventStore) GetByAccount(_ context.Context, account domain.AccountID) ([]*domain.EventRecord, error) {
	if account.IsEmpty() {
		return nil, storage.ErrInvalidInput
	}
	return s.filter(func(r *domain.EventRecord) bool { return r.Involves(account) }), nil
}

func (s *EventStore) filter(match func(*domain.EventRecord) bool) []*domain.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventRecord
	for _, r := range s.records {
		if match(r) {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Nonce != result[j].Nonce {
			return result[i].Nonce < result[j].Nonce
		}
		return result[i].Index < result[j].Index
	})
	return result
}

func recordKey(r *domain.EventRecord) string {
	return r.EventID + "|" + strconv.Itoa(r.Index)
}

var _ storage.EventStore = (*EventStore)(nil)
