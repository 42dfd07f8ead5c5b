package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"ft-ledger/internal/domain"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(kind|nonce|owner|receiver|amount)
// Returns base58-encoded hash. For mints receiver is empty.
func ComputeEventID(
	kind domain.EventKind,
	nonce uint64,
	owner domain.AccountID,
	receiver domain.AccountID,
	amount string,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s",
		string(kind),
		nonce,
		string(owner),
		string(receiver),
		amount,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
