package boltdb

import (
	"context"

	bolt "go.etcd.io/bbolt"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// TokenStatsStore implements storage.TokenStatsStore using bbolt.
type TokenStatsStore struct {
	d *DB
}

// NewTokenStatsStore creates a new TokenStatsStore.
func NewTokenStatsStore(d *DB) *TokenStatsStore {
	return &TokenStatsStore{d: d}
}

// Compile-time interface check.
var _ storage.TokenStatsStore = (*TokenStatsStore)(nil)

// Insert adds a new row. Returns ErrDuplicateKey if the symbol code exists.
func (s *TokenStatsStore) Insert(ctx context.Context, st *domain.TokenStats) error {
	if st == nil || st.Code() == "" {
		return storage.ErrInvalidInput
	}
	return s.d.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokenStats)
		key := []byte(st.Code())
		if b.Get(key) != nil {
			return storage.ErrDuplicateKey
		}
		return putJSON(b, key, st)
	})
}

// Get retrieves the row for a symbol code. Returns ErrNotFound if not exists.
func (s *TokenStatsStore) Get(ctx context.Context, code string) (*domain.TokenStats, error) {
	var st domain.TokenStats
	err := s.d.view(ctx, func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketTokenStats), []byte(code), &st)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Update replaces an existing row. Returns ErrNotFound if not exists.
func (s *TokenStatsStore) Update(ctx context.Context, st *domain.TokenStats) error {
	if st == nil || st.Code() == "" {
		return storage.ErrInvalidInput
	}
	return s.d.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokenStats)
		key := []byte(st.Code())
		if b.Get(key) == nil {
			return storage.ErrNotFound
		}
		return putJSON(b, key, st)
	})
}

// List retrieves all rows, ordered by symbol code ASC.
func (s *TokenStatsStore) List(ctx context.Context) ([]*domain.TokenStats, error) {
	var result []*domain.TokenStats
	err := s.d.view(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokenStats)
		return b.ForEach(func(k, _ []byte) error {
			var st domain.TokenStats
			if err := getJSON(b, k, &st); err != nil {
				return err
			}
			result = append(result, &st)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
