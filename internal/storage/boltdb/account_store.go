package boltdb

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// AccountStore implements storage.AccountStore using bbolt.
type AccountStore struct {
	d *DB
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(d *DB) *AccountStore {
	return &AccountStore{d: d}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Insert registers an account. Returns ErrDuplicateKey if the name exists.
func (s *AccountStore) Insert(ctx context.Context, a *domain.Account) error {
	if a == nil || a.Name == "" {
		return storage.ErrInvalidInput
	}
	return s.d.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		if b.Get([]byte(a.Name)) != nil {
			return storage.ErrDuplicateKey
		}
		return putJSON(b, []byte(a.Name), a)
	})
}

// Get retrieves an account by name. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(ctx context.Context, name domain.AccountName) (*domain.Account, error) {
	var a domain.Account
	err := s.d.view(ctx, func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketAccounts), []byte(name), &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List retrieves all accounts, ordered by name ASC.
func (s *AccountStore) List(ctx context.Context) ([]*domain.Account, error) {
	var result []*domain.Account
	err := s.d.view(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		return b.ForEach(func(k, _ []byte) error {
			var a domain.Account
			if err := getJSON(b, k, &a); err != nil {
				return err
			}
			result = append(result, &a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
