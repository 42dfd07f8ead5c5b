package events

import (
	"context"

	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/observability"
)

// LogNotifier writes every event as an EVENT_JSON line to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, e domain.Event) {
	line, err := Encode(e)
	if err != nil {
		observability.RecordNotifyError("log")
		n.logger.Error("encode event", zap.String("event_id", e.ID), zap.Error(err))
		return
	}
	n.logger.Info(line,
		zap.String("event_id", e.ID),
		zap.Uint64("nonce", e.Nonce),
	)
}
