package boltdb

import (
	"bytes"
	"context"

	bolt "go.etcd.io/bbolt"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// BalanceStore implements storage.BalanceStore using bbolt.
// Keys are owner 0x00 code, so one owner's rows are contiguous.
type BalanceStore struct {
	d *DB
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(d *DB) *BalanceStore {
	return &BalanceStore{d: d}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

func balanceKey(owner domain.AccountName, code string) []byte {
	key := make([]byte, 0, len(owner)+1+len(code))
	key = append(key, owner...)
	key = append(key, 0)
	return append(key, code...)
}

// Get retrieves a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Get(ctx context.Context, owner domain.AccountName, code string) (*domain.Balance, error) {
	var bal domain.Balance
	err := s.d.view(ctx, func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketBalances), balanceKey(owner, code), &bal)
	})
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// Put inserts or replaces a balance. Returns ErrInvalidInput if Amount is not positive.
func (s *BalanceStore) Put(ctx context.Context, bal *domain.Balance) error {
	if bal == nil || bal.Owner == "" || bal.Amount.Symbol.Code == "" || bal.Amount.Amount <= 0 {
		return storage.ErrInvalidInput
	}
	return s.d.update(ctx, func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketBalances), balanceKey(bal.Owner, bal.Amount.Symbol.Code), bal)
	})
}

// Delete removes a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Delete(ctx context.Context, owner domain.AccountName, code string) error {
	return s.d.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBalances)
		key := balanceKey(owner, code)
		if b.Get(key) == nil {
			return storage.ErrNotFound
		}
		return b.Delete(key)
	})
}

// ListByOwner retrieves all balances of an owner, ordered by symbol code ASC.
func (s *BalanceStore) ListByOwner(ctx context.Context, owner domain.AccountName) ([]*domain.Balance, error) {
	prefix := balanceKey(owner, "")

	var result []*domain.Balance
	err := s.d.view(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBalances)
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			var bal domain.Balance
			if err := getJSON(b, k, &bal); err != nil {
				return err
			}
			result = append(result, &bal)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListBySymbol retrieves all balances of a symbol, ordered by owner ASC.
func (s *BalanceStore) ListBySymbol(ctx context.Context, code string) ([]*domain.Balance, error) {
	suffix := append([]byte{0}, code...)

	var result []*domain.Balance
	err := s.d.view(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBalances)
		return b.ForEach(func(k, _ []byte) error {
			if !bytes.HasSuffix(k, suffix) {
				return nil
			}
			var bal domain.Balance
			if err := getJSON(b, k, &bal); err != nil {
				return err
			}
			result = append(result, &bal)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
