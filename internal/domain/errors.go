package domain

import "errors"

// Ledger operation failures. Each terminates the operation with no state change.
var (
	// ErrNotInitialized is returned by balance, supply, registration and transfer
	// operations before the one-time mint.
	ErrNotInitialized = errors.New("token is not initialized")

	// ErrAlreadyInitialized is returned by any initialization after the first.
	ErrAlreadyInitialized = errors.New("token is already initialized")

	// ErrInsufficientDeposit is returned when the attached value does not exceed
	// the minimum storage deposit.
	ErrInsufficientDeposit = errors.New("attached deposit is less than the minimum storage balance")

	// ErrInsufficientBalance is returned when the sender holds less than the amount.
	ErrInsufficientBalance = errors.New("sender balance is insufficient")

	// ErrReceiverNotRegistered is returned when the receiver has no balance entry.
	ErrReceiverNotRegistered = errors.New("receiver is not registered")

	// ErrInvalidAmount is returned for negative or non-integer amount strings.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidAccount is returned for empty account identifiers.
	ErrInvalidAccount = errors.New("invalid account id")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrNotInitialized, "NotInitialized"},
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrInsufficientDeposit, "InsufficientDeposit"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrReceiverNotRegistered, "ReceiverNotRegistered"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidAccount, "InvalidAccount"},
}

// ErrorKind returns the stable name of the ledger failure wrapped by err,
// or the empty string if err is not a ledger failure.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}
