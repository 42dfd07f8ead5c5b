package token

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/idhash"
)

// Transfer moves amount from sender to receiver. The receiver must hold a
// balance entry and the sender at least amount. Self-transfers succeed without
// changing any balance.
func (t *Token) Transfer(ctx context.Context, sender, receiver domain.AccountID, amount *big.Int, memo *string) error {
	if sender.IsEmpty() || receiver.IsEmpty() {
		return fmt.Errorf("%w: empty sender or receiver", domain.ErrInvalidAccount)
	}
	if amount == nil || domain.IsNegative(amount) {
		return fmt.Errorf("%w: negative amount", domain.ErrInvalidAmount)
	}
	if err := t.requireInitialized(ctx); err != nil {
		return err
	}

	tx := t.ledger.Begin()

	// An account without an entry holds zero.
	from, err := tx.BalanceOf(ctx, sender)
	if err != nil {
		return err
	}
	if from.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s",
			domain.ErrInsufficientBalance, sender, from, amount)
	}
	ok, err := tx.HasAccount(ctx, receiver)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrReceiverNotRegistered, receiver)
	}

	// Zero amounts write nothing, so no sender entry is created without a deposit.
	if sender != receiver && amount.Sign() > 0 {
		to, err := tx.BalanceOf(ctx, receiver)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(sender, new(big.Int).Sub(from, amount)); err != nil {
			return err
		}
		if err := tx.SetBalance(receiver, new(big.Int).Add(to, amount)); err != nil {
			return err
		}
	}

	nonce, err := tx.NextNonce(ctx)
	if err != nil {
		return err
	}
	if err := t.ledger.Commit(ctx, tx); err != nil {
		return err
	}

	amt := domain.FormatAmount(amount)
	t.emit(ctx, domain.Event{
		ID:    idhash.ComputeEventID(domain.EventTransfer, nonce, sender, receiver, amt),
		Nonce: nonce,
		Kind:  domain.EventTransfer,
		Transfers: []domain.TransferData{{
			OldOwnerID: sender,
			NewOwnerID: receiver,
			Amount:     amt,
			Memo:       memo,
		}},
	})

	t.logger.Debug("transfer",
		zap.String("sender", string(sender)),
		zap.String("receiver", string(receiver)),
		zap.String("amount", amt),
	)
	return nil
}
