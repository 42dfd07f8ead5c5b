package events

import (
	"context"

	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/observability"
	"ft-ledger/internal/storage"
)

// ArchiveNotifier appends every event to an EventStore.
type ArchiveNotifier struct {
	store  storage.EventStore
	logger *zap.Logger
}

// NewArchiveNotifier creates an archive notifier.
func NewArchiveNotifier(store storage.EventStore, logger *zap.Logger) *ArchiveNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveNotifier{store: store, logger: logger}
}

// Notify implements Notifier.
func (n *ArchiveNotifier) Notify(ctx context.Context, e domain.Event) {
	records := e.Records()
	if len(records) == 0 {
		return
	}
	if err := n.store.InsertBulk(ctx, records); err != nil {
		observability.RecordNotifyError("archive")
		n.logger.Error("archive event",
			zap.String("event_id", e.ID),
			zap.Int("records", len(records)),
			zap.Error(err),
		)
	}
}
