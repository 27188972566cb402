package memory

import (
	"context"
	"sort"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	db *DB
}

// NewBalanceStore creates a balance store backed by db.
func NewBalanceStore(db *DB) *BalanceStore {
	return &BalanceStore{db: db}
}

// Get retrieves a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Get(ctx context.Context, owner domain.AccountName, code string) (*domain.Balance, error) {
	unlock := s.db.rlock(ctx)
	defer unlock()

	b, exists := s.db.balances[balanceKey{owner: owner, code: code}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	balCopy := *b
	return &balCopy, nil
}

// Put inserts or replaces a balance. Returns ErrInvalidInput if Amount is not positive.
func (s *BalanceStore) Put(ctx context.Context, b *domain.Balance) error {
	if b == nil || b.Owner == "" || b.Amount.Symbol.Code == "" || b.Amount.Amount <= 0 {
		return storage.ErrInvalidInput
	}

	unlock := s.db.lock(ctx)
	defer unlock()

	key := balanceKey{owner: b.Owner, code: b.Amount.Symbol.Code}
	prev, existed := s.db.balances[key]

	balCopy := *b
	s.db.balances[key] = &balCopy
	s.db.onRollback(ctx, func() {
		if existed {
			s.db.balances[key] = prev
		} else {
			delete(s.db.balances, key)
		}
	})
	return nil
}

// Delete removes a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Delete(ctx context.Context, owner domain.AccountName, code string) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	key := balanceKey{owner: owner, code: code}
	prev, exists := s.db.balances[key]
	if !exists {
		return storage.ErrNotFound
	}

	delete(s.db.balances, key)
	s.db.onRollback(ctx, func() { s.db.balances[key] = prev })
	return nil
}

// ListByOwner retrieves all balances of an owner, ordered by symbol code ASC.
func (s *BalanceStore) ListByOwner(ctx context.Context, owner domain.AccountName) ([]*domain.Balance, error) {
	unlock := s.db.rlock(ctx)
	defer unlock()

	var result []*domain.Balance
	for key, b := range s.db.balances {
		if key.owner == owner {
			balCopy := *b
			result = append(result, &balCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Amount.Symbol.Code < result[j].Amount.Symbol.Code
	})
	return result, nil
}

// ListBySymbol retrieves all balances of a symbol, ordered by owner ASC.
func (s *BalanceStore) ListBySymbol(ctx context.Context, code string) ([]*domain.Balance, error) {
	unlock := s.db.rlock(ctx)
	defer unlock()

	var result []*domain.Balance
	for key, b := range s.db.balances {
		if key.code == code {
			balCopy := *b
			result = append(result, &balCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Owner < result[j].Owner
	})
	return result, nil
}

var _ storage.BalanceStore = (*BalanceStore)(nil)
