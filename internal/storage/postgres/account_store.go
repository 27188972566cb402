package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Insert registers an account. Returns ErrDuplicateKey if the name exists.
func (s *AccountStore) Insert(ctx context.Context, a *domain.Account) error {
	if a == nil || a.Name == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO accounts (name, public_key, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.q(ctx).Exec(ctx, query, string(a.Name), a.PublicKey, a.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Get retrieves an account by name. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(ctx context.Context, name domain.AccountName) (*domain.Account, error) {
	query := `SELECT name, public_key, created_at FROM accounts WHERE name = $1`

	a, err := scanAccount(s.pool.q(ctx).QueryRow(ctx, query, string(name)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// List retrieves all accounts, ordered by name ASC.
func (s *AccountStore) List(ctx context.Context) ([]*domain.Account, error) {
	rows, err := s.pool.q(ctx).Query(ctx, `SELECT name, public_key, created_at FROM accounts ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var result []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return result, nil
}

// scanAccount scans a single row into Account.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a    domain.Account
		name string
	)
	if err := row.Scan(&name, &a.PublicKey, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Name = domain.AccountName(name)
	return &a, nil
}
