package events

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ft-ledger/internal/domain"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func subscribe(t *testing.T, ctx context.Context, url string) <-chan domain.Event {
	t.Helper()
	ch := make(chan domain.Event, 8)
	go func() {
		_ = Subscribe(ctx, url, func(e domain.Event) error {
			ch <- e
			return nil
		})
	}()
	return ch
}

func TestHub_Broadcast(t *testing.T) {
	hub, url := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := subscribe(t, ctx, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Notify(ctx, transferEvent("e1", 3, "alice", "bob", "300"))

	select {
	case e := <-ch:
		assert.Equal(t, "e1", e.ID)
		assert.Equal(t, uint64(3), e.Nonce)
		assert.Equal(t, domain.EventTransfer, e.Kind)
		require.Len(t, e.Transfers, 1)
		assert.Equal(t, "300", e.Transfers[0].Amount)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_AccountFilter(t *testing.T) {
	hub, url := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := subscribe(t, ctx, url+"?account=carol")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Notify(ctx, transferEvent("e1", 1, "alice", "bob", "1"))
	hub.Notify(ctx, transferEvent("e2", 2, "alice", "carol", "2"))

	select {
	case e := <-ch:
		assert.Equal(t, "e2", e.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_CloseDisconnects(t *testing.T) {
	hub, url := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Subscribe(ctx, url, func(domain.Event) error { return nil })
	}()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not observe close")
	}
}

func TestHub_RefusesSubscribersAfterClose(t *testing.T) {
	hub, url := startHub(t)
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Subscribe(ctx, url, func(domain.Event) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial")
	assert.Equal(t, 0, hub.Clients())

	// Close stays safe to call again.
	hub.Close()
}
