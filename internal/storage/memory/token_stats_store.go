package memory

import (
	"context"
	"sort"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// TokenStatsStore is an in-memory implementation of storage.TokenStatsStore.
type TokenStatsStore struct {
	db *DB
}

// NewTokenStatsStore creates a token stats store backed by db.
func NewTokenStatsStore(db *DB) *TokenStatsStore {
	return &TokenStatsStore{db: db}
}

// Insert adds a new row. Returns ErrDuplicateKey if the symbol code exists.
func (s *TokenStatsStore) Insert(ctx context.Context, st *domain.TokenStats) error {
	if st == nil || st.Code() == "" {
		return storage.ErrInvalidInput
	}

	unlock := s.db.lock(ctx)
	defer unlock()

	code := st.Code()
	if _, exists := s.db.stats[code]; exists {
		return storage.ErrDuplicateKey
	}

	statsCopy := *st
	s.db.stats[code] = &statsCopy
	s.db.onRollback(ctx, func() { delete(s.db.stats, code) })
	return nil
}

// Get retrieves the row for a symbol code. Returns ErrNotFound if not exists.
func (s *TokenStatsStore) Get(ctx context.Context, code string) (*domain.TokenStats, error) {
	unlock := s.db.rlock(ctx)
	defer unlock()

	st, exists := s.db.stats[code]
	if !exists {
		return nil, storage.ErrNotFound
	}

	statsCopy := *st
	return &statsCopy, nil
}

// Update replaces an existing row. Returns ErrNotFound if not exists.
func (s *TokenStatsStore) Update(ctx context.Context, st *domain.TokenStats) error {
	if st == nil || st.Code() == "" {
		return storage.ErrInvalidInput
	}

	unlock := s.db.lock(ctx)
	defer unlock()

	code := st.Code()
	prev, exists := s.db.stats[code]
	if !exists {
		return storage.ErrNotFound
	}

	statsCopy := *st
	s.db.stats[code] = &statsCopy
	s.db.onRollback(ctx, func() { s.db.stats[code] = prev })
	return nil
}

// List retrieves all rows, ordered by symbol code ASC.
func (s *TokenStatsStore) List(ctx context.Context) ([]*domain.TokenStats, error) {
	unlock := s.db.rlock(ctx)
	defer unlock()

	result := make([]*domain.TokenStats, 0, len(s.db.stats))
	for _, st := range s.db.stats {
		statsCopy := *st
		result = append(result, &statsCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Code() < result[j].Code()
	})
	return result, nil
}

var _ storage.TokenStatsStore = (*TokenStatsStore)(nil)
