// Package events delivers token events to external observers.
//
// Notifiers are fire-and-forget: delivery failures are logged and counted,
// never returned to the operation that produced the event.
package events

import (
	"context"

	"ft-ledger/internal/domain"
)

// Notifier receives committed token events.
type Notifier interface {
	Notify(ctx context.Context, e domain.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e domain.Event)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, e domain.Event) {
	f(ctx, e)
}

// Nop discards every event.
var Nop Notifier = NotifierFunc(func(context.Context, domain.Event) {})

type multi []Notifier

// Multi fans an event out to every notifier in order. Nil entries are skipped.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, e domain.Event) {
	for _, n := range m {
		n.Notify(ctx, e)
	}
}
