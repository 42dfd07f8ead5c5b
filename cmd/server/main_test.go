package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ft-ledger/internal/config"
	"ft-ledger/internal/domain"
	"ft-ledger/internal/host"
	"ft-ledger/internal/ledger"
	"ft-ledger/internal/storage"
	"ft-ledger/internal/storage/memory"
	"ft-ledger/internal/token"
)

func TestCreateStore_Memory(t *testing.T) {
	cfg := config.Default()

	store, cleanup, err := createStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, store)
}

func TestCreateArchive(t *testing.T) {
	cfg := config.Default()

	archive, cleanup, err := createArchive(context.Background(), cfg)
	require.NoError(t, err)
	cleanup()
	assert.NotNil(t, archive)

	cfg.Archive.Backend = config.BackendNone
	archive, cleanup, err = createArchive(context.Background(), cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, archive)
}

func TestAutoInitialize(t *testing.T) {
	ctx := context.Background()
	store, cleanup, err := createStore(ctx, config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	tok := token.New(ledger.New(store), domain.DefaultMetadata(), nil)
	rt := host.NewRuntime(tok)

	cfg := config.Default()
	cfg.Token.Owner = "alice"
	cfg.Token.InitialSupply = "1000"

	require.NoError(t, autoInitialize(ctx, rt, cfg, zap.NewNop()))
	// Second start finds the token initialized
	require.NoError(t, autoInitialize(ctx, rt, cfg, zap.NewNop()))

	bal, err := tok.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1000", bal.String())
}

func TestAutoInitialize_Disabled(t *testing.T) {
	ctx := context.Background()
	store, cleanup, err := createStore(ctx, config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	tok := token.New(ledger.New(store), domain.DefaultMetadata(), nil)
	require.NoError(t, autoInitialize(ctx, host.NewRuntime(tok), config.Default(), zap.NewNop()))

	_, err = tok.TotalSupply(ctx)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestOpenLedger(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Apply(ctx, []storage.Write{
		{Key: "state", Value: []byte("initialized")},
		{Key: "nonce", Value: []byte("7")},
	}))

	core, logs := observer.New(zap.InfoLevel)
	l, err := openLedger(ctx, store, zap.New(core))
	require.NoError(t, err)
	require.NotNil(t, l)

	entries := logs.FilterMessage("ledger opened").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, true, fields["initialized"])
	assert.Equal(t, uint64(7), fields["nonce"])
}

func TestOpenLedger_CorruptNonce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, "nonce", []byte("seven")))

	_, err := openLedger(ctx, store, zap.NewNop())
	assert.ErrorIs(t, err, ledger.ErrCorruptEntry)
}
