package domain

// EventKind identifies a NEP-141 event.
type EventKind string

const (
	EventMint     EventKind = "ft_mint"
	EventTransfer EventKind = "ft_transfer"
)

// Event envelope constants of the NEP-297 log format.
const (
	EventStandard = "nep141"
	EventVersion  = "1.0.0"
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known event.
func (k EventKind) IsValid() bool {
	return k == EventMint || k == EventTransfer
}

// MintData is one entry of an ft_mint event.
type MintData struct {
	OwnerID AccountID `json:"owner_id"`
	Amount  string    `json:"amount"`
	Memo    *string   `json:"memo,omitempty"`
}

// TransferData is one entry of an ft_transfer event.
type TransferData struct {
	OldOwnerID AccountID `json:"old_owner_id"`
	NewOwnerID AccountID `json:"new_owner_id"`
	Amount     string    `json:"amount"`
	Memo       *string   `json:"memo,omitempty"`
}

// Event is a typed token event. Exactly one of Mints or Transfers is populated,
// matching Kind.
type Event struct {
	ID        string // deterministic, see idhash.ComputeEventID
	Nonce     uint64 // ledger nonce of the operation that produced the event
	Kind      EventKind
	Mints     []MintData
	Transfers []TransferData
	EmittedAt int64 // unix ms
}

// EventRecord is a single data entry of an Event, flattened for archiving.
type EventRecord struct {
	EventID    string
	Nonce      uint64
	Index      int // position inside the event data array
	Kind       EventKind
	OwnerID    AccountID // mint owner or transfer sender
	ReceiverID AccountID // transfer receiver, empty for mints
	Amount     string
	Memo       *string // nullable
	EmittedAt  int64   // unix ms
}

// Records flattens the event into archive rows, one per data entry.
func (e Event) Records() []*EventRecord {
	var out []*EventRecord
	switch e.Kind {
	case EventMint:
		for i, m := range e.Mints {
			out = append(out, &EventRecord{
				EventID:   e.ID,
				Nonce:     e.Nonce,
				Index:     i,
				Kind:      e.Kind,
				OwnerID:   m.OwnerID,
				Amount:    m.Amount,
				Memo:      cloneString(m.Memo),
				EmittedAt: e.EmittedAt,
			})
		}
	case EventTransfer:
		for i, t := range e.Transfers {
			out = append(out, &EventRecord{
				EventID:    e.ID,
				Nonce:      e.Nonce,
				Index:      i,
				Kind:       e.Kind,
				OwnerID:    t.OldOwnerID,
				ReceiverID: t.NewOwnerID,
				Amount:     t.Amount,
				Memo:       cloneString(t.Memo),
				EmittedAt:  e.EmittedAt,
			})
		}
	}
	return out
}

// Clone returns a deep copy of r.
func (r *EventRecord) Clone() *EventRecord {
	out := *r
	out.Memo = cloneString(r.Memo)
	return &out
}

// Involves reports whether the record touches the given account.
func (r *EventRecord) Involves(account AccountID) bool {
	return r.OwnerID == account || r.ReceiverID == account
}
