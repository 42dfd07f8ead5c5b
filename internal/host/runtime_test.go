package host

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/events"
	"ft-ledger/internal/ledger"
	"ft-ledger/internal/storage/memory"
	"ft-ledger/internal/token"
)

var twoMilliNear = func() *big.Int {
	v, _ := new(big.Int).SetString("2000000000000000000000", 10)
	return v
}()

func newRuntime(t *testing.T) (*Runtime, *events.Recorder, *tracetest.SpanRecorder) {
	t.Helper()
	rec := events.NewRecorder()
	tok := token.New(ledger.New(memory.NewStore()), domain.DefaultMetadata(), rec)

	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return NewRuntime(tok, WithTracer(provider.Tracer("test"))), rec, spans
}

func invoke(t *testing.T, rt *Runtime, method string, caller domain.AccountID, deposit *big.Int, args string) (*Result, error) {
	t.Helper()
	return rt.Invoke(context.Background(), Invocation{
		Method:  method,
		Caller:  caller,
		Deposit: deposit,
		Args:    json.RawMessage(args),
	})
}

func TestRuntime_AliceBobScenario(t *testing.T) {
	rt, rec, _ := newRuntime(t)

	_, err := invoke(t, rt, "initialize", "alice", nil, `{"owner_id":"alice","total_supply":"1000"}`)
	require.NoError(t, err)

	res, err := invoke(t, rt, "storage_deposit", "alice", twoMilliNear, `{"account_id":"bob"}`)
	require.NoError(t, err)
	assert.Equal(t, token.StorageBalance{Total: "1250000000000000000000", Available: "0"}, res.Value)

	res, err = invoke(t, rt, "transfer", "alice", big.NewInt(1), `{"receiver_id":"bob","amount":"300"}`)
	require.NoError(t, err)
	assert.Nil(t, res.Value)
	assert.NotEmpty(t, res.ReceiptID)
	assert.NotEmpty(t, res.InvocationID)

	for account, want := range map[string]string{"alice": "700", "bob": "300"} {
		res, err := invoke(t, rt, "balance_of", "", nil, `{"account_id":"`+account+`"}`)
		require.NoError(t, err)
		assert.Equal(t, want, res.Value, account)
	}

	res, err = invoke(t, rt, "total_supply", "", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "1000", res.Value)

	assert.Len(t, rec.Events(), 2)
}

func TestRuntime_Aliases(t *testing.T) {
	rt, _, _ := newRuntime(t)

	_, err := invoke(t, rt, "new", "alice", nil, `{"owner_id":"alice","total_supply":"5"}`)
	require.NoError(t, err)

	res, err := invoke(t, rt, "ft_balance_of", "", nil, `{"account_id":"alice"}`)
	require.NoError(t, err)
	assert.Equal(t, "5", res.Value)
	assert.Equal(t, "balance_of", res.Method)

	res, err = invoke(t, rt, "ft_metadata", "", nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMetadata(), res.Value)

	op, ok := rt.Lookup("ft_transfer")
	require.True(t, ok)
	assert.Equal(t, "transfer", op.Name)
	assert.Equal(t, CapPayable, op.Capability)
}

func TestRuntime_OperationsTable(t *testing.T) {
	rt, _, _ := newRuntime(t)

	var names []string
	for _, op := range rt.Operations() {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{
		"balance_of",
		"initialize",
		"metadata",
		"storage_balance_bounds",
		"storage_deposit",
		"total_supply",
		"transfer",
	}, names)
}

func TestRuntime_Validation(t *testing.T) {
	rt, rec, _ := newRuntime(t)
	_, err := invoke(t, rt, "initialize", "alice", nil, `{"owner_id":"alice","total_supply":"1000"}`)
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		caller  domain.AccountID
		deposit *big.Int
		args    string
		wantErr error
	}{
		{"unknown method", "ft_burn", "alice", nil, "", ErrMethodNotFound},
		{"deposit on view", "total_supply", "", big.NewInt(1), "", ErrDepositNotAllowed},
		{"deposit on call", "initialize", "alice", big.NewInt(1), `{"owner_id":"alice","total_supply":"1"}`, ErrDepositNotAllowed},
		{"transfer without caller", "transfer", "", nil, `{"receiver_id":"alice","amount":"1"}`, ErrMissingCaller},
		{"deposit without caller", "storage_deposit", "", twoMilliNear, `{}`, ErrMissingCaller},
		{"negative deposit", "storage_deposit", "bob", big.NewInt(-1), `{}`, ErrInvalidArguments},
		{"args not object", "balance_of", "", nil, `["alice"]`, ErrInvalidArguments},
		{"args wrong type", "transfer", "alice", nil, `{"receiver_id":"bob","amount":300}`, ErrInvalidArguments},
		{"missing account", "balance_of", "", nil, `{}`, ErrInvalidArguments},
		{"missing receiver", "transfer", "alice", nil, `{"amount":"1"}`, ErrInvalidArguments},
		{"bad amount", "transfer", "alice", nil, `{"receiver_id":"alice","amount":"-1"}`, domain.ErrInvalidAmount},
		{"decimal amount", "transfer", "alice", nil, `{"receiver_id":"alice","amount":"1.5"}`, domain.ErrInvalidAmount},
		{"low deposit", "storage_deposit", "bob", big.NewInt(1), `{}`, domain.ErrInsufficientDeposit},
		{"unregistered receiver", "ft_transfer", "alice", nil, `{"receiver_id":"carol","amount":"1"}`, domain.ErrReceiverNotRegistered},
		{"double init", "init", "alice", nil, `{"owner_id":"bob","total_supply":"1"}`, domain.ErrAlreadyInitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, rt, tt.method, tt.caller, tt.deposit, tt.args)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	res, err := invoke(t, rt, "balance_of", "", nil, `{"account_id":"alice"}`)
	require.NoError(t, err)
	assert.Equal(t, "1000", res.Value)
	assert.Len(t, rec.Events(), 1)
}

func TestRuntime_StorageDepositDefaultsToCaller(t *testing.T) {
	rt, _, _ := newRuntime(t)
	_, err := invoke(t, rt, "initialize", "alice", nil, `{"owner_id":"alice","total_supply":"10"}`)
	require.NoError(t, err)

	for caller, args := range map[domain.AccountID]string{
		"bob":   `{"registration_only":true}`,
		"carol": `{"account_id":"","register_only":true}`,
		"dave":  ``,
	} {
		_, err = invoke(t, rt, "storage_deposit", caller, twoMilliNear, args)
		require.NoError(t, err, caller)

		_, err = invoke(t, rt, "transfer", "alice", nil, `{"receiver_id":"`+string(caller)+`","amount":"1","memo":"hi"}`)
		require.NoError(t, err, caller)
	}

	res, err := invoke(t, rt, "balance_of", "", nil, `{"account_id":"carol"}`)
	require.NoError(t, err)
	assert.Equal(t, "1", res.Value)
}

func TestRuntime_StorageBalanceBounds(t *testing.T) {
	rt, _, _ := newRuntime(t)
	_, err := invoke(t, rt, "initialize", "alice", nil, `{"owner_id":"alice","total_supply":"10"}`)
	require.NoError(t, err)

	res, err := invoke(t, rt, "storage_balance_bounds", "", nil, "")
	require.NoError(t, err)

	body, err := json.Marshal(res.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":"1250000000000000000000","max":null}`, string(body))
}

func TestRuntime_NotInitialized(t *testing.T) {
	rt, _, _ := newRuntime(t)

	_, err := invoke(t, rt, "total_supply", "", nil, "")
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.Equal(t, "NotInitialized", ErrorKind(err))

	_, err = invoke(t, rt, "metadata", "", nil, "")
	assert.NoError(t, err)
}

func TestRuntime_Spans(t *testing.T) {
	rt, _, spans := newRuntime(t)

	_, err := invoke(t, rt, "initialize", "alice", nil, `{"owner_id":"alice","total_supply":"10"}`)
	require.NoError(t, err)
	_, err = invoke(t, rt, "transfer", "alice", nil, `{"receiver_id":"carol","amount":"1"}`)
	require.Error(t, err)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "Runtime.Invoke", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "ReceiverNotRegistered", ended[1].Status().Description)
}

func TestRuntime_ExplicitInvocationID(t *testing.T) {
	rt, _, _ := newRuntime(t)

	res, err := rt.Invoke(context.Background(), Invocation{ID: "inv-1", Method: "metadata"})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", res.InvocationID)

	res2, err := rt.Invoke(context.Background(), Invocation{ID: "inv-1", Method: "metadata"})
	require.NoError(t, err)
	assert.Equal(t, res.ReceiptID, res2.ReceiptID)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "MethodNotFound", ErrorKind(ErrMethodNotFound))
	assert.Equal(t, "InsufficientBalance", ErrorKind(domain.ErrInsufficientBalance))
	assert.Equal(t, "Internal", ErrorKind(assert.AnError))
}
