package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ft-ledger/internal/domain"
)

// LogPrefix marks a structured event line.
const LogPrefix = "EVENT_JSON:"

// ErrMalformedEvent is returned when decoding a line that is not a token event.
var ErrMalformedEvent = errors.New("malformed event")

type envelope struct {
	Standard string           `json:"standard"`
	Version  string           `json:"version"`
	Event    domain.EventKind `json:"event"`
	Data     json.RawMessage  `json:"data"`
}

// Encode renders e as an EVENT_JSON log line.
func Encode(e domain.Event) (string, error) {
	if !e.Kind.IsValid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, e.Kind)
	}

	var (
		data []byte
		err  error
	)
	switch e.Kind {
	case domain.EventMint:
		data, err = json.Marshal(nonNil(e.Mints))
	case domain.EventTransfer:
		data, err = json.Marshal(nonNil(e.Transfers))
	}
	if err != nil {
		return "", fmt.Errorf("marshal event data: %w", err)
	}

	body, err := json.Marshal(envelope{
		Standard: domain.EventStandard,
		Version:  domain.EventVersion,
		Event:    e.Kind,
		Data:     data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return LogPrefix + string(body), nil
}

// Decode parses an EVENT_JSON log line. ID, Nonce and EmittedAt are left zero.
func Decode(line string) (domain.Event, error) {
	body, ok := strings.CutPrefix(line, LogPrefix)
	if !ok {
		return domain.Event{}, fmt.Errorf("%w: missing %s prefix", ErrMalformedEvent, LogPrefix)
	}

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Standard != domain.EventStandard {
		return domain.Event{}, fmt.Errorf("%w: standard %q", ErrMalformedEvent, env.Standard)
	}

	if !env.Event.IsValid() {
		return domain.Event{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, env.Event)
	}

	e := domain.Event{Kind: env.Event}
	var err error
	switch env.Event {
	case domain.EventMint:
		err = json.Unmarshal(env.Data, &e.Mints)
	case domain.EventTransfer:
		err = json.Unmarshal(env.Data, &e.Transfers)
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return e, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
