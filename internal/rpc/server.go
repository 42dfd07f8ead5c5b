package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/host"
)

const maxRequestBody = 1 << 20

// Server serves the runtime at /rpc, the operation table at /methods, plus
// /health and optional /events, /metrics and /history endpoints.
type Server struct {
	rt     *host.Runtime
	logger *zap.Logger
	mux    *http.ServeMux
}

// ServerOption configures Server.
type ServerOption func(*Server)

// WithEventStream mounts the websocket event stream at /events.
func WithEventStream(h http.Handler) ServerOption {
	return func(s *Server) {
		s.mux.Handle("/events", h)
	}
}

// WithMetrics mounts the metrics handler at /metrics.
func WithMetrics(h http.Handler) ServerOption {
	return func(s *Server) {
		s.mux.Handle("/metrics", h)
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a JSON-RPC server for rt.
func NewServer(rt *host.Runtime, opts ...ServerOption) *Server {
	s := &Server{
		rt:     rt,
		logger: zap.NewNop(),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/rpc", s.handleRPC)
	s.mux.HandleFunc("/methods", s.handleMethods)
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		s.write(w, nil, nil, &Error{Code: CodeParseError, Message: "read body"})
		return
	}
	if len(body) > maxRequestBody {
		s.write(w, nil, nil, &Error{Code: CodeInvalidRequest, Message: "request too large"})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.write(w, nil, nil, &Error{Code: CodeParseError, Message: err.Error()})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.write(w, req.ID, nil, &Error{Code: CodeInvalidRequest, Message: "expected jsonrpc 2.0 request with method"})
		return
	}

	// Unknown methods are reported before their params are looked at.
	if _, ok := s.rt.Lookup(req.Method); !ok {
		s.write(w, req.ID, nil, toError(fmt.Errorf("%w: %s", host.ErrMethodNotFound, req.Method)))
		return
	}

	var params InvokeParams
	if p := bytes.TrimSpace(req.Params); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		if err := json.Unmarshal(p, &params); err != nil {
			s.write(w, req.ID, nil, &Error{
				Code:    CodeInvalidParams,
				Message: err.Error(),
				Data:    &ErrorData{Kind: "InvalidArguments"},
			})
			return
		}
	}

	inv := host.Invocation{
		Method: req.Method,
		Caller: params.Caller,
		Args:   params.Args,
	}
	if params.Deposit != "" {
		deposit, err := domain.ParseAmount(params.Deposit)
		if err != nil {
			s.write(w, req.ID, nil, toError(fmt.Errorf("%w: deposit: %v", host.ErrInvalidArguments, err)))
			return
		}
		inv.Deposit = deposit
	}

	res, err := s.rt.Invoke(r.Context(), inv)
	if err != nil {
		s.write(w, req.ID, nil, toError(err))
		return
	}

	value, err := json.Marshal(res.Value)
	if err != nil {
		s.write(w, req.ID, nil, &Error{Code: CodeInternalError, Message: "marshal result"})
		return
	}
	s.write(w, req.ID, &InvokeResult{
		InvocationID: res.InvocationID,
		ReceiptID:    res.ReceiptID,
		Method:       res.Method,
		Value:        value,
	}, nil)
}

// MethodInfo describes one entry of the operation table.
type MethodInfo struct {
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	Capability string   `json:"capability"`
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ops := s.rt.Operations()
	out := make([]MethodInfo, 0, len(ops))
	for _, op := range ops {
		out = append(out, MethodInfo{
			Name:       op.Name,
			Aliases:    op.Aliases,
			Capability: op.Capability.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("write methods response", zap.Error(err))
	}
}

func (s *Server) write(w http.ResponseWriter, id json.RawMessage, result *InvokeResult, rpcErr *Error) {
	if id == nil {
		id = json.RawMessage("null")
	}
	resp := rpcResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = &Error{Code: CodeInternalError, Message: "marshal result"}
		} else {
			resp.Result = raw
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("write rpc response", zap.Error(err))
	}
}
