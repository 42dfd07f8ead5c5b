package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/token"
)

// Capability classifies what an operation may do.
type Capability int

const (
	// CapView reads state, takes no caller and no deposit.
	CapView Capability = iota
	// CapCall mutates state, requires a caller, rejects a deposit.
	CapCall
	// CapPayable mutates state, requires a caller, accepts a deposit.
	CapPayable
)

// String returns the string representation of Capability.
func (c Capability) String() string {
	switch c {
	case CapView:
		return "view"
	case CapCall:
		return "call"
	case CapPayable:
		return "payable"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Handler runs an operation against the token.
type Handler func(ctx context.Context, tok *token.Token, inv Invocation) (any, error)

// Operation is one entry of the operation table.
type Operation struct {
	Name       string
	Aliases    []string
	Capability Capability
	Handler    Handler
}

// InitializeArgs are the arguments of initialize.
type InitializeArgs struct {
	OwnerID     domain.AccountID `json:"owner_id"`
	TotalSupply string           `json:"total_supply"`
}

// BalanceOfArgs are the arguments of balance_of.
type BalanceOfArgs struct {
	AccountID domain.AccountID `json:"account_id"`
}

// StorageDepositArgs are the arguments of storage_deposit. An empty AccountID
// means the caller. The registration flag is accepted under both its NEAR
// contract name (register_only) and its NEP-145 name (registration_only) and
// has no effect: deposits are never refunded.
type StorageDepositArgs struct {
	AccountID        domain.AccountID `json:"account_id,omitempty"`
	RegisterOnly     *bool            `json:"register_only,omitempty"`
	RegistrationOnly *bool            `json:"registration_only,omitempty"`
}

// TransferArgs are the arguments of transfer.
type TransferArgs struct {
	ReceiverID domain.AccountID `json:"receiver_id"`
	Amount     string           `json:"amount"`
	Memo       *string          `json:"memo,omitempty"`
}

// Operations returns the operation table of the token contract.
func Operations() []Operation {
	return []Operation{
		{
			Name:       "initialize",
			Aliases:    []string{"init", "new"},
			Capability: CapCall,
			Handler:    initialize,
		},
		{
			Name:       "total_supply",
			Aliases:    []string{"ft_total_supply"},
			Capability: CapView,
			Handler:    totalSupply,
		},
		{
			Name:       "balance_of",
			Aliases:    []string{"ft_balance_of"},
			Capability: CapView,
			Handler:    balanceOf,
		},
		{
			Name:       "metadata",
			Aliases:    []string{"ft_metadata"},
			Capability: CapView,
			Handler:    metadata,
		},
		{
			Name:       "storage_deposit",
			Capability: CapPayable,
			Handler:    storageDeposit,
		},
		{
			Name:       "storage_balance_bounds",
			Capability: CapView,
			Handler:    storageBalanceBounds,
		},
		{
			Name:       "transfer",
			Aliases:    []string{"ft_transfer"},
			Capability: CapPayable,
			Handler:    transfer,
		},
	}
}

func initialize(ctx context.Context, tok *token.Token, inv Invocation) (any, error) {
	var args InitializeArgs
	if err := decodeArgs(inv.Args, &args); err != nil {
		return nil, err
	}
	if args.OwnerID.IsEmpty() {
		return nil, fmt.Errorf("%w: owner_id is required", ErrInvalidArguments)
	}
	supply, err := domain.ParseAmount(args.TotalSupply)
	if err != nil {
		return nil, err
	}
	return nil, tok.Initialize(ctx, args.OwnerID, supply)
}

func totalSupply(ctx context.Context, tok *token.Token, _ Invocation) (any, error) {
	supply, err := tok.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FormatAmount(supply), nil
}

func balanceOf(ctx context.Context, tok *token.Token, inv Invocation) (any, error) {
	var args BalanceOfArgs
	if err := decodeArgs(inv.Args, &args); err != nil {
		return nil, err
	}
	if args.AccountID.IsEmpty() {
		return nil, fmt.Errorf("%w: account_id is required", ErrInvalidArguments)
	}
	bal, err := tok.BalanceOf(ctx, args.AccountID)
	if err != nil {
		return nil, err
	}
	return domain.FormatAmount(bal), nil
}

func metadata(_ context.Context, tok *token.Token, _ Invocation) (any, error) {
	return tok.Metadata(), nil
}

func storageDeposit(ctx context.Context, tok *token.Token, inv Invocation) (any, error) {
	var args StorageDepositArgs
	if err := decodeArgs(inv.Args, &args); err != nil {
		return nil, err
	}
	account := args.AccountID
	if account.IsEmpty() {
		account = inv.Caller
	}
	return tok.StorageDeposit(ctx, account, inv.deposit())
}

func storageBalanceBounds(ctx context.Context, tok *token.Token, _ Invocation) (any, error) {
	return tok.StorageBalanceBounds(ctx)
}

func transfer(ctx context.Context, tok *token.Token, inv Invocation) (any, error) {
	var args TransferArgs
	if err := decodeArgs(inv.Args, &args); err != nil {
		return nil, err
	}
	if args.ReceiverID.IsEmpty() {
		return nil, fmt.Errorf("%w: receiver_id is required", ErrInvalidArguments)
	}
	amount, err := domain.ParseAmount(args.Amount)
	if err != nil {
		return nil, err
	}
	return nil, tok.Transfer(ctx, inv.Caller, args.ReceiverID, amount, args.Memo)
}

// decodeArgs unmarshals a JSON object. Empty input decodes as {}.
func decodeArgs(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '{' {
		return fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidArguments)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
