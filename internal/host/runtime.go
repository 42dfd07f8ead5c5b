// Package host adapts the token to an invocation-based execution model: an
// explicit operation table, capability checks, argument decoding and
// serialized dispatch.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/idhash"
	"ft-ledger/internal/observability"
	"ft-ledger/internal/token"
)

// Invocation is one call into the runtime. Caller is trusted: the host has
// already authenticated it.
type Invocation struct {
	ID      string
	Method  string
	Caller  domain.AccountID
	Deposit *big.Int // attached value, nil means none
	Args    json.RawMessage
}

func (inv Invocation) deposit() *big.Int {
	if inv.Deposit == nil {
		return new(big.Int)
	}
	return inv.Deposit
}

// Result is the outcome of a successful invocation.
type Result struct {
	InvocationID string
	ReceiptID    string
	Method       string // canonical name
	Value        any    // JSON-marshalable, nil for operations without a result
}

// Runtime dispatches invocations to the token. Invocations run one at a time.
type Runtime struct {
	mu     sync.Mutex
	token  *token.Token
	ops    map[string]*Operation
	logger *zap.Logger
	tracer trace.Tracer
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer sets the tracer used for invocation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runtime) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// NewRuntime creates a runtime serving the standard operation table.
func NewRuntime(tok *token.Token, opts ...Option) *Runtime {
	r := &Runtime{
		token:  tok,
		ops:    make(map[string]*Operation),
		logger: zap.NewNop(),
		tracer: otel.Tracer("ft-ledger/host"),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, op := range Operations() {
		r.ops[op.Name] = &op
		for _, alias := range op.Aliases {
			r.ops[alias] = &op
		}
	}
	return r
}

// Lookup resolves a method name or alias.
func (r *Runtime) Lookup(method string) (Operation, bool) {
	op, ok := r.ops[method]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// Operations returns the operation table sorted by canonical name.
func (r *Runtime) Operations() []Operation {
	seen := make(map[string]bool)
	var out []Operation
	for _, op := range r.ops {
		if seen[op.Name] {
			continue
		}
		seen[op.Name] = true
		out = append(out, *op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke validates and runs inv. Validation failures never reach the token.
func (r *Runtime) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}

	ctx, span := r.tracer.Start(ctx, "Runtime.Invoke",
		trace.WithAttributes(
			attribute.String("invocation.id", inv.ID),
			attribute.String("invocation.method", inv.Method),
			attribute.String("invocation.caller", string(inv.Caller)),
		),
	)
	defer span.End()

	start := time.Now()
	op, err := r.validate(inv)
	if err != nil {
		label := "unknown"
		if op != nil {
			label = op.Name
		}
		r.finish(span, inv, label, start, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("operation.name", op.Name),
		attribute.String("operation.capability", op.Capability.String()),
	)

	r.mu.Lock()
	value, err := op.Handler(ctx, r.token, inv)
	r.mu.Unlock()

	r.finish(span, inv, op.Name, start, err)
	if err != nil {
		return nil, err
	}

	return &Result{
		InvocationID: inv.ID,
		ReceiptID:    idhash.ComputeReceiptID(inv.ID, op.Name, inv.Caller),
		Method:       op.Name,
		Value:        value,
	}, nil
}

// validate checks capability rules. The operation is returned whenever the
// method resolves, even on error.
func (r *Runtime) validate(inv Invocation) (*Operation, error) {
	op, ok := r.ops[inv.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, inv.Method)
	}
	if domain.IsNegative(inv.Deposit) {
		return op, fmt.Errorf("%w: negative deposit", ErrInvalidArguments)
	}

	hasDeposit := inv.Deposit != nil && inv.Deposit.Sign() > 0
	switch op.Capability {
	case CapView:
		if hasDeposit {
			return op, fmt.Errorf("%w: %s is a view", ErrDepositNotAllowed, op.Name)
		}
	case CapCall:
		if hasDeposit {
			return op, fmt.Errorf("%w: %s", ErrDepositNotAllowed, op.Name)
		}
		if inv.Caller.IsEmpty() {
			return op, fmt.Errorf("%w: %s", ErrMissingCaller, op.Name)
		}
	case CapPayable:
		if inv.Caller.IsEmpty() {
			return op, fmt.Errorf("%w: %s", ErrMissingCaller, op.Name)
		}
	}
	return op, nil
}

func (r *Runtime) finish(span trace.Span, inv Invocation, method string, start time.Time, err error) {
	elapsed := time.Since(start)
	kind := ErrorKind(err)
	observability.RecordInvocation(method, kind, elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		r.logger.Info("invocation failed",
			zap.String("invocation_id", inv.ID),
			zap.String("method", method),
			zap.String("caller", string(inv.Caller)),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return
	}

	span.SetStatus(codes.Ok, "")
	r.logger.Debug("invocation",
		zap.String("invocation_id", inv.ID),
		zap.String("method", method),
		zap.String("caller", string(inv.Caller)),
		zap.Duration("elapsed", elapsed),
	)
}
