package host

import (
	"errors"

	"ft-ledger/internal/domain"
)

// Invocation failures detected before an operation runs.
var (
	// ErrMethodNotFound is returned for a name missing from the operation table.
	ErrMethodNotFound = errors.New("method not found")

	// ErrDepositNotAllowed is returned when value is attached to a view or
	// non-payable call.
	ErrDepositNotAllowed = errors.New("method does not accept attached deposit")

	// ErrMissingCaller is returned when a mutating operation has no caller.
	ErrMissingCaller = errors.New("mutating method requires a caller")

	// ErrInvalidArguments is returned for malformed or missing arguments.
	ErrInvalidArguments = errors.New("invalid arguments")
)

var hostKinds = []struct {
	err  error
	kind string
}{
	{ErrMethodNotFound, "MethodNotFound"},
	{ErrDepositNotAllowed, "DepositNotAllowed"},
	{ErrMissingCaller, "MissingCaller"},
	{ErrInvalidArguments, "InvalidArguments"},
}

// ErrorKind returns the stable name of err: a ledger kind, a host kind, or
// "Internal" for anything else. Returns the empty string for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if k := domain.ErrorKind(err); k != "" {
		return k
	}
	for _, k := range hostKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
