package clickhouse

import (
	"context"
	"fmt"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const selectEventColumns = `
	SELECT event_id, nonce, idx, kind, owner_id, receiver_id, amount, memo, emitted_at
	FROM token_events
`

// InsertBulk adds records in one batch. MergeTree does not enforce keys,
// so duplicates are checked before the batch is sent.
func (s *EventStore) InsertBulk(ctx context.Context, records []*domain.EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.EventID == "" {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%d", r.EventID, r.Index)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}

		exists, err := s.exists(ctx, r.EventID, r.Index)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO token_events (
			event_id, nonce, idx, kind, owner_id, receiver_id, amount, memo, emitted_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.EventID, r.Nonce, uint32(r.Index), string(r.Kind),
			string(r.OwnerID), string(r.ReceiverID), r.Amount, r.Memo, uint64(r.EmittedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByEventID retrieves all records of an event, ordered by index ASC.
func (s *EventStore) GetByEventID(ctx context.Context, eventID string) ([]*domain.EventRecord, error) {
	rows, err := s.conn.Query(ctx, selectEventColumns+`
		WHERE event_id = ?
		ORDER BY idx ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query by event id: %w", err)
	}
	defer rows.Close()

	return scanEventRecords(rows)
}

// GetByAccount retrieves records touching the account, ordered by nonce, index ASC.
func (s *EventStore) GetByAccount(ctx context.Context, account domain.AccountID) ([]*domain.EventRecord, error) {
	if account.IsEmpty() {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.conn.Query(ctx, selectEventColumns+`
		WHERE owner_id = ? OR receiver_id = ?
		ORDER BY nonce ASC, idx ASC
	`, string(account), string(account))
	if err != nil {
		return nil, fmt.Errorf("query by account: %w", err)
	}
	defer rows.Close()

	return scanEventRecords(rows)
}

func (s *EventStore) exists(ctx context.Context, eventID string, index int) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `
		SELECT count() FROM token_events WHERE event_id = ? AND idx = ?
	`, eventID, uint32(index))
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type eventRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEventRecords(rows eventRows) ([]*domain.EventRecord, error) {
	var result []*domain.EventRecord
	for rows.Next() {
		var (
			r          domain.EventRecord
			idx        uint32
			kind       string
			ownerID    string
			receiverID string
			emittedAt  uint64
		)
		if err := rows.Scan(&r.EventID, &r.Nonce, &idx, &kind, &ownerID, &receiverID, &r.Amount, &r.Memo, &emittedAt); err != nil {
			return nil, fmt.Errorf("scan event record: %w", err)
		}
		r.Index = int(idx)
		r.Kind = domain.EventKind(kind)
		r.OwnerID = domain.AccountID(ownerID)
		r.ReceiverID = domain.AccountID(receiverID)
		r.EmittedAt = int64(emittedAt)
		result = append(result, &r)
	}
	return result, rows.Err()
}
