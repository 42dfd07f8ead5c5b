package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/storage"
)

// HistoryRecord is the wire form of an archived event record.
type HistoryRecord struct {
	EventID    string           `json:"event_id"`
	Nonce      uint64           `json:"nonce"`
	Index      int              `json:"index"`
	Kind       domain.EventKind `json:"kind"`
	OwnerID    domain.AccountID `json:"owner_id"`
	ReceiverID domain.AccountID `json:"receiver_id,omitempty"`
	Amount     string           `json:"amount"`
	Memo       *string          `json:"memo,omitempty"`
	EmittedAt  int64            `json:"emitted_at"`
}

// WithArchive serves GET /history?account=<id> from the event archive.
func WithArchive(store storage.EventStore) ServerOption {
	return func(s *Server) {
		s.mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
			s.handleHistory(w, r, store)
		})
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, store storage.EventStore) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account := domain.AccountID(r.URL.Query().Get("account"))
	if account.IsEmpty() {
		http.Error(w, "account is required", http.StatusBadRequest)
		return
	}

	records, err := store.GetByAccount(r.Context(), account)
	if err != nil {
		s.logger.Error("query event archive", zap.String("account", string(account)), zap.Error(err))
		http.Error(w, "archive unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]HistoryRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, HistoryRecord{
			EventID:    rec.EventID,
			Nonce:      rec.Nonce,
			Index:      rec.Index,
			Kind:       rec.Kind,
			OwnerID:    rec.OwnerID,
			ReceiverID: rec.ReceiverID,
			Amount:     rec.Amount,
			Memo:       rec.Memo,
			EmittedAt:  rec.EmittedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("write history response", zap.Error(err))
	}
}

// History returns the archived event records touching account.
func (c *Client) History(ctx context.Context, account domain.AccountID) ([]HistoryRecord, error) {
	var out []HistoryRecord
	if err := c.getJSON(ctx, "/history?account="+url.QueryEscape(string(account)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Methods returns the server's operation table.
func (c *Client) Methods(ctx context.Context) ([]MethodInfo, error) {
	var out []MethodInfo
	if err := c.getJSON(ctx, "/methods", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON issues a GET against a path next to the /rpc endpoint.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	endpoint := strings.TrimSuffix(c.endpoint, "/rpc") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
