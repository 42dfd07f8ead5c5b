package rpc

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/events"
	"ft-ledger/internal/host"
	"ft-ledger/internal/ledger"
	"ft-ledger/internal/storage/memory"
	"ft-ledger/internal/token"
)

func TestHistory(t *testing.T) {
	ctx := context.Background()
	archive := memory.NewEventStore()
	tok := token.New(
		ledger.New(memory.NewStore()),
		domain.DefaultMetadata(),
		events.NewArchiveNotifier(archive, nil),
	)
	srv := httptest.NewServer(NewServer(host.NewRuntime(tok), WithArchive(archive)))
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.Initialize(ctx, "alice", "alice", big.NewInt(1000)))
	_, err := c.StorageDeposit(ctx, "bob", "", deposit())
	require.NoError(t, err)
	memo := "coffee"
	_, err = c.Transfer(ctx, "alice", "bob", big.NewInt(5), &memo)
	require.NoError(t, err)

	alice, err := c.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, domain.EventMint, alice[0].Kind)
	assert.Equal(t, domain.EventTransfer, alice[1].Kind)

	bob, err := c.History(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, "5", bob[0].Amount)
	require.NotNil(t, bob[0].Memo)
	assert.Equal(t, "coffee", *bob[0].Memo)

	_, err = c.History(ctx, "")
	assert.ErrorContains(t, err, "400")
}
