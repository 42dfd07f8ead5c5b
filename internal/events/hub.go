package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/observability"
)

// StreamMessage is one frame of the websocket event stream.
type StreamMessage struct {
	ID        string `json:"id"`
	Nonce     uint64 `json:"nonce"`
	EmittedAt int64  `json:"emitted_at"`
	Log       string `json:"log"`
}

// HubConfig configures websocket stream behavior.
type HubConfig struct {
	// SendBuffer is the per-subscriber queue length. A subscriber whose queue
	// is full is disconnected.
	SendBuffer int
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a subscriber may stay silent (no pong).
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultHubConfig returns default stream configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   256,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type subscriber struct {
	conn    *websocket.Conn
	account domain.AccountID // empty means all events
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

// Hub broadcasts events to websocket subscribers. It is both a Notifier and
// an http.Handler.
type Hub struct {
	config   HubConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates a hub. A nil config uses DefaultHubConfig.
func NewHub(logger *zap.Logger, config *HubConfig) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		config: cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until the peer leaves.
// The optional account query parameter restricts the stream to events
// touching that account. Requests after Close are refused.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	s := &subscriber{
		conn:    conn,
		account: domain.AccountID(r.URL.Query().Get("account")),
		send:    make(chan []byte, h.config.SendBuffer),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[s] = struct{}{}
	n := len(h.clients)
	h.wg.Add(1)
	h.mu.Unlock()
	observability.UpdateStreamClients(n)
	h.logger.Debug("stream subscriber joined", zap.String("account", string(s.account)))

	go h.writeLoop(s)
	h.readLoop(s)
}

// Notify implements Notifier.
func (h *Hub) Notify(_ context.Context, e domain.Event) {
	line, err := Encode(e)
	if err != nil {
		observability.RecordNotifyError("stream")
		h.logger.Error("encode event", zap.String("event_id", e.ID), zap.Error(err))
		return
	}
	msg, err := json.Marshal(StreamMessage{
		ID:        e.ID,
		Nonce:     e.Nonce,
		EmittedAt: e.EmittedAt,
		Log:       line,
	})
	if err != nil {
		observability.RecordNotifyError("stream")
		return
	}

	records := e.Records()

	h.mu.Lock()
	var slow []*subscriber
	for s := range h.clients {
		if !s.wants(records) {
			continue
		}
		select {
		case s.send <- msg:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.Unlock()

	for _, s := range slow {
		observability.RecordNotifyError("stream")
		h.logger.Warn("dropping slow stream subscriber")
		h.remove(s)
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber, refuses new ones and waits for their
// writers to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*subscriber, 0, len(h.clients))
	for s := range h.clients {
		clients = append(clients, s)
	}
	h.mu.Unlock()

	for _, s := range clients {
		h.remove(s)
	}
	h.wg.Wait()
}

func (s *subscriber) wants(records []*domain.EventRecord) bool {
	if s.account == "" {
		return true
	}
	for _, r := range records {
		if r.Involves(s.account) {
			return true
		}
	}
	return false
}

func (h *Hub) remove(s *subscriber) {
	s.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, s)
		n := len(h.clients)
		h.mu.Unlock()
		observability.UpdateStreamClients(n)

		close(s.done)
		s.conn.Close()
	})
}

// readLoop consumes control frames so pongs are processed. Subscribers never
// send data.
func (h *Hub) readLoop(s *subscriber) {
	defer h.remove(s)

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	defer h.wg.Done()
	defer h.remove(s)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Subscribe connects to an event stream endpoint and calls handler for every
// event until ctx is done or handler returns an error.
func Subscribe(ctx context.Context, endpoint string, handler func(domain.Event) error) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}

		e, err := Decode(msg.Log)
		if err != nil {
			return err
		}
		e.ID = msg.ID
		e.Nonce = msg.Nonce
		e.EmittedAt = msg.EmittedAt

		if err := handler(e); err != nil {
			return err
		}
	}
}
