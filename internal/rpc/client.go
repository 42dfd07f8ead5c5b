package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/host"
	"ft-ledger/internal/observability"
	"ft-ledger/internal/token"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client calls a Server over HTTP. Only view calls are retried; a mutating
// call is sent at most once.
type Client struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for view calls.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the server at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    strings.TrimSuffix(baseURL, "/") + "/rpc",
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// View performs a read-only call, retrying transport failures with
// exponential backoff.
func (c *Client) View(ctx context.Context, method string, args any, result any) (*InvokeResult, error) {
	return c.call(ctx, method, InvokeParams{}, args, result, c.maxRetries)
}

// Call performs a mutating call on behalf of caller with an optional deposit.
// It is never retried.
func (c *Client) Call(ctx context.Context, method string, caller domain.AccountID, deposit *big.Int, args any, result any) (*InvokeResult, error) {
	params := InvokeParams{Caller: caller}
	if deposit != nil {
		params.Deposit = deposit.String()
	}
	return c.call(ctx, method, params, args, result, 0)
}

func (c *Client) call(ctx context.Context, method string, params InvokeParams, args any, result any, retries int) (*InvokeResult, error) {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal args: %w", err)
		}
		params.Args = raw
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprintf("%d", reqID)),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return nil, rpcResp.Error
		}

		var out InvokeResult
		if err := json.Unmarshal(rpcResp.Result, &out); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		if result != nil && len(out.Value) > 0 {
			if err := json.Unmarshal(out.Value, result); err != nil {
				return nil, fmt.Errorf("unmarshal value: %w", err)
			}
		}
		return &out, nil
	}

	if retries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Initialize mints supply to owner.
func (c *Client) Initialize(ctx context.Context, caller, owner domain.AccountID, supply *big.Int) error {
	_, err := c.Call(ctx, "initialize", caller, nil, host.InitializeArgs{
		OwnerID:     owner,
		TotalSupply: domain.FormatAmount(supply),
	}, nil)
	return err
}

// TotalSupply returns the minted supply.
func (c *Client) TotalSupply(ctx context.Context) (*big.Int, error) {
	var s string
	if _, err := c.View(ctx, "total_supply", nil, &s); err != nil {
		return nil, err
	}
	return domain.ParseAmount(s)
}

// BalanceOf returns the balance of account.
func (c *Client) BalanceOf(ctx context.Context, account domain.AccountID) (*big.Int, error) {
	var s string
	if _, err := c.View(ctx, "balance_of", host.BalanceOfArgs{AccountID: account}, &s); err != nil {
		return nil, err
	}
	return domain.ParseAmount(s)
}

// Metadata returns the token metadata.
func (c *Client) Metadata(ctx context.Context) (domain.TokenMetadata, error) {
	var m domain.TokenMetadata
	_, err := c.View(ctx, "metadata", nil, &m)
	return m, err
}

// StorageBalanceBounds returns the registration deposit limits.
func (c *Client) StorageBalanceBounds(ctx context.Context) (token.StorageBalanceBounds, error) {
	var b token.StorageBalanceBounds
	_, err := c.View(ctx, "storage_balance_bounds", nil, &b)
	return b, err
}

// StorageDeposit registers account (the caller when empty), attaching deposit.
func (c *Client) StorageDeposit(ctx context.Context, caller, account domain.AccountID, deposit *big.Int) (token.StorageBalance, error) {
	args := host.StorageDepositArgs{AccountID: account}
	var sb token.StorageBalance
	_, err := c.Call(ctx, "storage_deposit", caller, deposit, args, &sb)
	return sb, err
}

// Transfer moves amount from caller to receiver and returns the receipt id.
func (c *Client) Transfer(ctx context.Context, caller, receiver domain.AccountID, amount *big.Int, memo *string) (string, error) {
	res, err := c.Call(ctx, "transfer", caller, nil, host.TransferArgs{
		ReceiverID: receiver,
		Amount:     domain.FormatAmount(amount),
		Memo:       memo,
	}, nil)
	if err != nil {
		return "", err
	}
	return res.ReceiptID, nil
}
