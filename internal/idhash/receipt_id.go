package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"ft-ledger/internal/domain"
)

// ComputeReceiptID computes a deterministic receipt_id for a host invocation.
// Formula: SHA256(invocation_id|method|caller)
// Returns base58-encoded hash.
func ComputeReceiptID(invocationID, method string, caller domain.AccountID) string {
	data := fmt.Sprintf("%s|%s|%s", invocationID, method, string(caller))
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
