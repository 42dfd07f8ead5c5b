package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/storage"
)

// Tx is a staged set of ledger writes. Reads see staged writes first and fall
// through to the store. A Tx is not safe for concurrent use.
type Tx struct {
	ledger *Ledger
	writes map[string][]byte
	done   bool
}

// BalanceOf returns the balance of account as seen by this transaction.
func (tx *Tx) BalanceOf(ctx context.Context, account domain.AccountID) (*big.Int, error) {
	v, ok, err := tx.get(ctx, balanceKey(account))
	if err != nil || !ok {
		return new(big.Int), err
	}
	return decodeAmount(v)
}

// HasAccount reports whether account holds an entry, staged or stored.
func (tx *Tx) HasAccount(ctx context.Context, account domain.AccountID) (bool, error) {
	_, ok, err := tx.get(ctx, balanceKey(account))
	return ok, err
}

// SetBalance stages a balance overwrite. Negative values are rejected.
func (tx *Tx) SetBalance(account domain.AccountID, value *big.Int) error {
	if value == nil || domain.IsNegative(value) {
		return fmt.Errorf("%w: negative balance for %s", domain.ErrInvalidAmount, account)
	}
	tx.writes[balanceKey(account)] = []byte(value.String())
	return nil
}

// TotalSupply returns the supply as seen by this transaction.
func (tx *Tx) TotalSupply(ctx context.Context) (*big.Int, error) {
	v, ok, err := tx.get(ctx, keyTotalSupply)
	if err != nil || !ok {
		return new(big.Int), err
	}
	return decodeAmount(v)
}

// SetTotalSupply stages the supply.
func (tx *Tx) SetTotalSupply(value *big.Int) error {
	if value == nil || domain.IsNegative(value) {
		return fmt.Errorf("%w: negative total supply", domain.ErrInvalidAmount)
	}
	tx.writes[keyTotalSupply] = []byte(value.String())
	return nil
}

// Initialized reports whether the token is initialized, staged or stored.
func (tx *Tx) Initialized(ctx context.Context) (bool, error) {
	_, ok, err := tx.get(ctx, keyState)
	return ok, err
}

// MarkInitialized stages the initialized marker.
func (tx *Tx) MarkInitialized() {
	tx.writes[keyState] = stateInitialized
}

// NextNonce stages an increment of the ledger nonce and returns the new value.
func (tx *Tx) NextNonce(ctx context.Context) (uint64, error) {
	var n uint64
	v, ok, err := tx.get(ctx, keyNonce)
	if err != nil {
		return 0, err
	}
	if ok {
		n, err = strconv.ParseUint(string(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: nonce %q", ErrCorruptEntry, v)
		}
	}
	n++
	tx.writes[keyNonce] = []byte(strconv.FormatUint(n, 10))
	return n, nil
}

// Writes returns the staged writes ordered by key.
func (tx *Tx) Writes() []storage.Write {
	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]storage.Write, 0, len(keys))
	for _, k := range keys {
		out = append(out, storage.Write{Key: k, Value: tx.writes[k]})
	}
	return out
}

func (tx *Tx) get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := tx.writes[key]; ok {
		return v, true, nil
	}
	return tx.ledger.get(ctx, key)
}
