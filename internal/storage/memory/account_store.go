package memory

import (
	"context"
	"sort"
	"sync"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu     sync.RWMutex
	byName map[domain.AccountName]*domain.Account
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byName: make(map[domain.AccountName]*domain.Account),
	}
}

// Insert registers an account. Returns ErrDuplicateKey if the name exists.
func (s *AccountStore) Insert(_ context.Context, a *domain.Account) error {
	if a == nil || a.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[a.Name]; exists {
		return storage.ErrDuplicateKey
	}

	accCopy := *a
	s.byName[a.Name] = &accCopy
	return nil
}

// Get retrieves an account by name. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(_ context.Context, name domain.AccountName) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.byName[name]
	if !exists {
		return nil, storage.ErrNotFound
	}

	accCopy := *a
	return &accCopy, nil
}

// List retrieves all accounts, ordered by name ASC.
func (s *AccountStore) List(_ context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Account, 0, len(s.byName))
	for _, a := range s.byName {
		accCopy := *a
		result = append(result, &accCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

var _ storage.AccountStore = (*AccountStore)(nil)
