// Package rpc exposes the host runtime over JSON-RPC 2.0 and provides a
// matching client.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/host"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeLedgerError is returned for token failures; Data.Kind names the failure.
	CodeLedgerError = -32000
)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// InvokeParams are the params of every method call.
type InvokeParams struct {
	Caller  domain.AccountID `json:"caller,omitempty"`
	Deposit string           `json:"deposit,omitempty"` // decimal yocto units
	Args    json.RawMessage  `json:"args,omitempty"`
}

// InvokeResult is the result of every successful method call.
type InvokeResult struct {
	InvocationID string          `json:"invocation_id"`
	ReceiptID    string          `json:"receipt_id"`
	Method       string          `json:"method"`
	Value        json.RawMessage `json:"value"`
}

// ErrorData carries the stable failure kind.
type ErrorData struct {
	Kind string `json:"kind"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil && e.Data.Kind != "" {
		return fmt.Sprintf("RPC error %d (%s): %s", e.Code, e.Data.Kind, e.Message)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Is matches the ledger or host sentinel named by the error kind, so callers
// can use errors.Is across the wire.
func (e *Error) Is(target error) bool {
	if e.Data == nil {
		return false
	}
	sentinel, ok := kindSentinels[e.Data.Kind]
	return ok && sentinel == target
}

var kindSentinels = func() map[string]error {
	m := make(map[string]error)
	for _, err := range []error{
		domain.ErrNotInitialized,
		domain.ErrAlreadyInitialized,
		domain.ErrInsufficientDeposit,
		domain.ErrInsufficientBalance,
		domain.ErrReceiverNotRegistered,
		domain.ErrInvalidAmount,
		domain.ErrInvalidAccount,
		host.ErrMethodNotFound,
		host.ErrDepositNotAllowed,
		host.ErrMissingCaller,
		host.ErrInvalidArguments,
	} {
		m[host.ErrorKind(err)] = err
	}
	return m
}()

// toError converts an invocation failure to its wire form.
func toError(err error) *Error {
	kind := host.ErrorKind(err)
	code := CodeLedgerError
	switch {
	case errors.Is(err, host.ErrMethodNotFound):
		code = CodeMethodNotFound
	case errors.Is(err, host.ErrInvalidArguments):
		code = CodeInvalidParams
	case kind == "Internal":
		code = CodeInternalError
	}
	return &Error{Code: code, Message: err.Error(), Data: &ErrorData{Kind: kind}}
}
