package memory

import (
	"context"
	"errors"
	"testing"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

func TestBalanceStore_PutAndGet(t *testing.T) {
	store := NewBalanceStore(NewDB())
	ctx := context.Background()

	b := &domain.Balance{Owner: "alice", Amount: domain.NewAsset(600000, tok), UpdatedAt: 1000}
	if err := store.Put(ctx, b); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "alice", "TOK")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Amount.String() != "60.0000 TOK" {
		t.Errorf("Amount mismatch: got %s", got.Amount)
	}

	// Put replaces
	b.Amount = domain.NewAsset(1, tok)
	if err := store.Put(ctx, b); err != nil {
		t.Fatalf("Put replace failed: %v", err)
	}
	got, _ = store.Get(ctx, "alice", "TOK")
	if got.Amount.Amount != 1 {
		t.Errorf("Amount not replaced: got %d", got.Amount.Amount)
	}
}

func TestBalanceStore_RejectsNonPositive(t *testing.T) {
	store := NewBalanceStore(NewDB())
	ctx := context.Background()

	for _, amount := range []int64{0, -5} {
		err := store.Put(ctx, &domain.Balance{Owner: "alice", Amount: domain.NewAsset(amount, tok)})
		if !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("amount %d: expected ErrInvalidInput, got %v", amount, err)
		}
	}
}

func TestBalanceStore_Delete(t *testing.T) {
	store := NewBalanceStore(NewDB())
	ctx := context.Background()

	if err := store.Put(ctx, &domain.Balance{Owner: "alice", Amount: domain.NewAsset(5, tok)}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "alice", "TOK"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "alice", "TOK"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "alice", "TOK"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestBalanceStore_Lists(t *testing.T) {
	store := NewBalanceStore(NewDB())
	ctx := context.Background()
	abc := domain.NewSymbol("ABC", 2)

	rows := []*domain.Balance{
		{Owner: "bob", Amount: domain.NewAsset(1, tok)},
		{Owner: "alice", Amount: domain.NewAsset(2, tok)},
		{Owner: "alice", Amount: domain.NewAsset(3, abc)},
	}
	for _, b := range rows {
		if err := store.Put(ctx, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	byOwner, _ := store.ListByOwner(ctx, "alice")
	if len(byOwner) != 2 || byOwner[0].Amount.Symbol.Code != "ABC" || byOwner[1].Amount.Symbol.Code != "TOK" {
		t.Errorf("ListByOwner unexpected: %+v", byOwner)
	}

	bySymbol, _ := store.ListBySymbol(ctx, "TOK")
	if len(bySymbol) != 2 || bySymbol[0].Owner != "alice" || bySymbol[1].Owner != "bob" {
		t.Errorf("ListBySymbol unexpected: %+v", bySymbol)
	}
}
