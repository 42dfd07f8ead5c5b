package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/storage"
	"ft-ledger/internal/storage/memory"
)

// failingStore wraps a memory store and fails every Apply.
type failingStore struct {
	*memory.Store
}

var errApply = errors.New("apply failed")

func (s failingStore) Apply(context.Context, []storage.Write) error {
	return errApply
}

func TestLedger_EmptyState(t *testing.T) {
	ctx := context.Background()
	l := New(memory.NewStore())

	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())

	supply, err := l.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, supply.Sign())

	ok, err := l.HasAccount(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_SetBalance(t *testing.T) {
	ctx := context.Background()
	l := New(memory.NewStore())

	require.NoError(t, l.SetBalance(ctx, "alice", big.NewInt(42)))

	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "42", bal.String())

	ok, err := l.HasAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	err = l.SetBalance(ctx, "alice", big.NewInt(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	bal, err = l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "42", bal.String())
}

func TestLedger_LargeValues(t *testing.T) {
	ctx := context.Background()
	l := New(memory.NewStore())

	huge, ok := new(big.Int).SetString("340282366920938463463374607431768211455000", 10)
	require.True(t, ok)
	require.NoError(t, l.SetBalance(ctx, "whale", huge))

	bal, err := l.Balance(ctx, "whale")
	require.NoError(t, err)
	assert.Equal(t, 0, huge.Cmp(bal))
}

func TestTx_OverlayAndCommit(t *testing.T) {
	ctx := context.Background()
	l := New(memory.NewStore())

	tx := l.Begin()
	require.NoError(t, tx.SetTotalSupply(big.NewInt(1000)))
	require.NoError(t, tx.SetBalance("alice", big.NewInt(1000)))
	tx.MarkInitialized()

	nonce, err := tx.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)

	// Staged reads see the overlay
	bal, err := tx.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1000", bal.String())
	ok, err := tx.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Nothing visible before commit
	ok, err = l.Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Commit(ctx, tx))

	supply, err := l.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000", supply.String())
	ok, err = l.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	n, err := l.Nonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	assert.ErrorIs(t, l.Commit(ctx, tx), ErrTxDone)
}

func TestTx_NextNonceIncrements(t *testing.T) {
	ctx := context.Background()
	l := New(memory.NewStore())

	for want := uint64(1); want <= 3; want++ {
		tx := l.Begin()
		got, err := tx.NextNonce(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		require.NoError(t, l.Commit(ctx, tx))
	}
}

func TestTx_RejectsNegative(t *testing.T) {
	tx := New(memory.NewStore()).Begin()

	assert.ErrorIs(t, tx.SetBalance("alice", big.NewInt(-5)), domain.ErrInvalidAmount)
	assert.ErrorIs(t, tx.SetTotalSupply(big.NewInt(-5)), domain.ErrInvalidAmount)
	assert.Empty(t, tx.Writes())
}

func TestTx_WritesSorted(t *testing.T) {
	tx := New(memory.NewStore()).Begin()
	require.NoError(t, tx.SetBalance("bob", big.NewInt(1)))
	require.NoError(t, tx.SetBalance("alice", big.NewInt(2)))
	require.NoError(t, tx.SetTotalSupply(big.NewInt(3)))

	writes := tx.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, "balances:alice", writes[0].Key)
	assert.Equal(t, "balances:bob", writes[1].Key)
	assert.Equal(t, "total_supply", writes[2].Key)
}

func TestCommit_FailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, "balances:alice", []byte("700")))

	l := New(failingStore{store})

	tx := l.Begin()
	require.NoError(t, tx.SetBalance("alice", big.NewInt(0)))
	require.NoError(t, tx.SetBalance("bob", big.NewInt(700)))

	err := l.Commit(ctx, tx)
	assert.ErrorIs(t, err, errApply)

	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "700", bal.String())
	ok, err := l.HasAccount(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, "balances:alice", []byte("not-a-number")))

	_, err := New(store).Balance(ctx, "alice")
	assert.ErrorIs(t, err, ErrCorruptEntry)
}

func TestCommit_ForeignTx(t *testing.T) {
	a := New(memory.NewStore())
	b := New(memory.NewStore())

	assert.Error(t, a.Commit(context.Background(), b.Begin()))
}
