package token

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/ledger"
)

// MinStorageDeposit is the registration threshold in yocto units (0.00125 NEAR).
// The attached value must strictly exceed it.
var MinStorageDeposit, _ = new(big.Int).SetString("1250000000000000000000", 10)

// StorageBalance describes an account's registration deposit.
type StorageBalance struct {
	Total     string `json:"total"`
	Available string `json:"available"`
}

// StorageBalanceBounds reports the registration deposit limits.
type StorageBalanceBounds struct {
	Min string  `json:"min"`
	Max *string `json:"max"`
}

// EnsureRegistered creates a zero balance entry for account in tx unless one
// exists. attached must exceed MinStorageDeposit even for registered accounts.
func EnsureRegistered(ctx context.Context, tx *ledger.Tx, account domain.AccountID, attached *big.Int) (created bool, err error) {
	if attached == nil || attached.Cmp(MinStorageDeposit) <= 0 {
		return false, fmt.Errorf("%w: attached %s, required more than %s",
			domain.ErrInsufficientDeposit, domain.FormatAmount(attached), MinStorageDeposit)
	}

	ok, err := tx.HasAccount(ctx, account)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := tx.SetBalance(account, new(big.Int)); err != nil {
		return false, err
	}
	return true, nil
}

// StorageDeposit registers account, paying with attached.
func (t *Token) StorageDeposit(ctx context.Context, account domain.AccountID, attached *big.Int) (StorageBalance, error) {
	if account.IsEmpty() {
		return StorageBalance{}, fmt.Errorf("%w: empty account", domain.ErrInvalidAccount)
	}
	if err := t.requireInitialized(ctx); err != nil {
		return StorageBalance{}, err
	}

	tx := t.ledger.Begin()
	created, err := EnsureRegistered(ctx, tx, account, attached)
	if err != nil {
		return StorageBalance{}, err
	}
	if err := t.ledger.Commit(ctx, tx); err != nil {
		return StorageBalance{}, err
	}

	if created {
		t.logger.Info("account registered", zap.String("account", string(account)))
	}
	return StorageBalance{
		Total:     MinStorageDeposit.String(),
		Available: "0",
	}, nil
}

// StorageBalanceBounds returns the fixed registration threshold. Max is nil:
// deposits above the minimum are accepted.
func (t *Token) StorageBalanceBounds(ctx context.Context) (StorageBalanceBounds, error) {
	if err := t.requireInitialized(ctx); err != nil {
		return StorageBalanceBounds{}, err
	}
	return StorageBalanceBounds{Min: MinStorageDeposit.String()}, nil
}
