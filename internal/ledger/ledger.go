// Package ledger owns the account balances and total supply of the token.
// All state lives in an injected storage.Store; mutations are staged in a Tx
// and persisted with a single Store.Apply.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/observability"
	"ft-ledger/internal/storage"
)

// Storage layout.
const (
	balancePrefix  = "balances:"
	keyTotalSupply = "total_supply"
	keyState       = "state"
	keyNonce       = "nonce"
)

var stateInitialized = []byte("initialized")

// ErrCorruptEntry is returned when a stored value cannot be decoded.
var ErrCorruptEntry = errors.New("corrupt ledger entry")

// ErrTxDone is returned when committing a Tx twice.
var ErrTxDone = errors.New("ledger transaction already committed")

// Ledger is the sole owner of balance state.
type Ledger struct {
	store  storage.Store
	logger *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a ledger on top of store.
func New(store storage.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func balanceKey(account domain.AccountID) string {
	return balancePrefix + string(account)
}

// Balance returns the stored balance of account, or zero if it has no entry.
func (l *Ledger) Balance(ctx context.Context, account domain.AccountID) (*big.Int, error) {
	v, ok, err := l.get(ctx, balanceKey(account))
	if err != nil || !ok {
		return new(big.Int), err
	}
	return decodeAmount(v)
}

// HasAccount reports whether account holds a balance entry.
func (l *Ledger) HasAccount(ctx context.Context, account domain.AccountID) (bool, error) {
	_, ok, err := l.get(ctx, balanceKey(account))
	return ok, err
}

// SetBalance overwrites the balance of account, creating the entry if needed.
// Conservation of supply is the caller's responsibility.
func (l *Ledger) SetBalance(ctx context.Context, account domain.AccountID, value *big.Int) error {
	if value == nil || domain.IsNegative(value) {
		return fmt.Errorf("%w: negative balance for %s", domain.ErrInvalidAmount, account)
	}

	start := time.Now()
	err := l.store.Set(ctx, balanceKey(account), []byte(value.String()))
	observability.RecordStoreOp("set", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// TotalSupply returns the minted supply, zero before initialization.
func (l *Ledger) TotalSupply(ctx context.Context) (*big.Int, error) {
	v, ok, err := l.get(ctx, keyTotalSupply)
	if err != nil || !ok {
		return new(big.Int), err
	}
	return decodeAmount(v)
}

// Initialized reports whether the one-time mint has happened.
func (l *Ledger) Initialized(ctx context.Context) (bool, error) {
	_, ok, err := l.get(ctx, keyState)
	return ok, err
}

// Nonce returns the number of committed transactions that consumed a nonce.
func (l *Ledger) Nonce(ctx context.Context) (uint64, error) {
	v, ok, err := l.get(ctx, keyNonce)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: nonce %q", ErrCorruptEntry, v)
	}
	return n, nil
}

// Begin starts a new staged transaction.
func (l *Ledger) Begin() *Tx {
	return &Tx{
		ledger: l,
		writes: make(map[string][]byte),
	}
}

// Commit persists the write set of tx in one Store.Apply call.
// On error nothing from tx is visible.
func (l *Ledger) Commit(ctx context.Context, tx *Tx) error {
	if tx.ledger != l {
		return errors.New("ledger transaction belongs to another ledger")
	}
	if tx.done {
		return ErrTxDone
	}

	writes := tx.Writes()
	if len(writes) == 0 {
		tx.done = true
		return nil
	}

	start := time.Now()
	err := l.store.Apply(ctx, writes)
	observability.RecordStoreOp("apply", time.Since(start).Seconds(), err)
	if err != nil {
		l.logger.Warn("ledger commit failed",
			zap.Int("writes", len(writes)),
			zap.Error(err),
		)
		return fmt.Errorf("commit: %w", err)
	}

	tx.done = true
	l.logger.Debug("ledger commit", zap.Int("writes", len(writes)))
	return nil
}

// get returns (value, true) for an existing key and (nil, false) for a missing one.
func (l *Ledger) get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	v, err := l.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		observability.RecordStoreOp("get", time.Since(start).Seconds(), nil)
		return nil, false, nil
	}
	observability.RecordStoreOp("get", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

func decodeAmount(v []byte) (*big.Int, error) {
	n, ok := new(big.Int).SetString(string(v), 10)
	if !ok || n.Sign() < 0 {
		return new(big.Int), fmt.Errorf("%w: amount %q", ErrCorruptEntry, v)
	}
	return n, nil
}
