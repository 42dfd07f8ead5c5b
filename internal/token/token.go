// Package token implements the fungible-token operations on top of the ledger:
// one-time initialization, storage registration, transfers and metadata.
package token

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/events"
	"ft-ledger/internal/idhash"
	"ft-ledger/internal/ledger"
	"ft-ledger/internal/observability"
)

// MintMemo is attached to the initial supply mint event.
const MintMemo = "Initial tokens supply is minted"

// Token is the fungible-token contract state machine. It is not safe for
// concurrent use; the host serializes invocations.
type Token struct {
	ledger   *ledger.Ledger
	meta     domain.TokenMetadata
	notifier events.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Token.
type Option func(*Token)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Token) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Token) {
		t.now = now
	}
}

// New creates a token over l. A nil notifier discards events.
func New(l *ledger.Ledger, meta domain.TokenMetadata, notifier events.Notifier, opts ...Option) *Token {
	if notifier == nil {
		notifier = events.Nop
	}
	t := &Token{
		ledger:   l,
		meta:     meta.Clone(),
		notifier: notifier,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize mints the entire supply to owner. It succeeds exactly once.
func (t *Token) Initialize(ctx context.Context, owner domain.AccountID, supply *big.Int) error {
	if owner.IsEmpty() {
		return fmt.Errorf("%w: empty owner", domain.ErrInvalidAccount)
	}
	if supply == nil || domain.IsNegative(supply) {
		return fmt.Errorf("%w: negative total supply", domain.ErrInvalidAmount)
	}

	tx := t.ledger.Begin()
	ok, err := tx.Initialized(ctx)
	if err != nil {
		return err
	}
	if ok {
		return domain.ErrAlreadyInitialized
	}

	if err := tx.SetTotalSupply(supply); err != nil {
		return err
	}
	if err := tx.SetBalance(owner, supply); err != nil {
		return err
	}
	tx.MarkInitialized()
	nonce, err := tx.NextNonce(ctx)
	if err != nil {
		return err
	}

	if err := t.ledger.Commit(ctx, tx); err != nil {
		return err
	}

	amount := domain.FormatAmount(supply)
	memo := MintMemo
	t.emit(ctx, domain.Event{
		ID:    idhash.ComputeEventID(domain.EventMint, nonce, owner, "", amount),
		Nonce: nonce,
		Kind:  domain.EventMint,
		Mints: []domain.MintData{{
			OwnerID: owner,
			Amount:  amount,
			Memo:    &memo,
		}},
	})

	f, _ := new(big.Float).SetInt(supply).Float64()
	observability.UpdateTotalSupply(f)
	t.logger.Info("token initialized",
		zap.String("owner", string(owner)),
		zap.String("total_supply", amount),
	)
	return nil
}

// TotalSupply returns the minted supply.
func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	if err := t.requireInitialized(ctx); err != nil {
		return nil, err
	}
	return t.ledger.TotalSupply(ctx)
}

// BalanceOf returns the balance of account, zero if it is not registered.
func (t *Token) BalanceOf(ctx context.Context, account domain.AccountID) (*big.Int, error) {
	if err := t.requireInitialized(ctx); err != nil {
		return nil, err
	}
	return t.ledger.Balance(ctx, account)
}

func (t *Token) requireInitialized(ctx context.Context) error {
	ok, err := t.ledger.Initialized(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotInitialized
	}
	return nil
}

// emit stamps and hands a committed event to the notifier.
func (t *Token) emit(ctx context.Context, e domain.Event) {
	e.EmittedAt = t.now().UnixMilli()
	t.notifier.Notify(ctx, e)
	observability.RecordEventEmitted(e.Kind.String())
}
