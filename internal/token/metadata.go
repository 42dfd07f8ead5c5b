package token

import "ft-ledger/internal/domain"

// Metadata returns a copy of the token metadata. It is available before
// initialization.
func (t *Token) Metadata() domain.TokenMetadata {
	return t.meta.Clone()
}
