package memory

import (
	"context"
	"errors"
	"testing"

	"ft-ledger/internal/storage"
)

func TestStore_SetAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.Set(ctx, "balances:alice", []byte("1000")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, err := store.Get(ctx, "balances:alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(v) != "1000" {
		t.Errorf("value mismatch: got %s, want 1000", v)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := NewStore()

	_, err := store.Get(context.Background(), "balances:nobody")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	value := []byte("42")
	if err := store.Set(ctx, "k", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[0] = '9'

	v, _ := store.Get(ctx, "k")
	v[1] = '9'

	again, _ := store.Get(ctx, "k")
	if string(again) != "42" {
		t.Errorf("store mutated through caller slices: got %s", again)
	}
}

func TestStore_ApplyRejectsInvalidBatch(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Apply(ctx, []storage.Write{
		{Key: "a", Value: []byte("1")},
		{Key: "", Value: []byte("2")},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if _, err := store.Get(ctx, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("partial batch applied: Get(a) = %v", err)
	}
}

func TestStore_ApplyOverwrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	writes := []storage.Write{
		{Key: "balances:alice", Value: []byte("700")},
		{Key: "balances:bob", Value: []byte("300")},
	}
	if err := store.Set(ctx, "balances:alice", []byte("1000")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Apply(ctx, writes); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	for _, w := range writes {
		v, err := store.Get(ctx, w.Key)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", w.Key, err)
		}
		if string(v) != string(w.Value) {
			t.Errorf("%s: got %s, want %s", w.Key, v, w.Value)
		}
	}
}
