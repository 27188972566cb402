package storage

import (
	"context"

	"powtoken/internal/domain"
)

// TokenStatsStore provides access to token_stats storage.
type TokenStatsStore interface {
	// Insert adds a new row. Returns ErrDuplicateKey if the symbol code exists.
	Insert(ctx context.Context, s *domain.TokenStats) error

	// Get retrieves the row for a symbol code. Returns ErrNotFound if not exists.
	// Inside Transactor.Atomic the row is locked until the transaction ends.
	Get(ctx context.Context, code string) (*domain.TokenStats, error)

	// Update replaces an existing row. Returns ErrNotFound if not exists.
	Update(ctx context.Context, s *domain.TokenStats) error

	// List retrieves all rows, ordered by symbol code ASC.
	List(ctx context.Context) ([]*domain.TokenStats, error)
}

// BalanceStore provides access to balances storage.
// Rows are keyed by (owner, symbol code) and never hold a non-positive amount.
type BalanceStore interface {
	// Get retrieves a balance. Returns ErrNotFound if the owner holds none of the symbol.
	Get(ctx context.Context, owner domain.AccountName, code string) (*domain.Balance, error)

	// Put inserts or replaces a balance. Returns ErrInvalidInput if Amount is not positive.
	Put(ctx context.Context, b *domain.Balance) error

	// Delete removes a balance. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, owner domain.AccountName, code string) error

	// ListByOwner retrieves all balances of an owner, ordered by symbol code ASC.
	ListByOwner(ctx context.Context, owner domain.AccountName) ([]*domain.Balance, error)

	// ListBySymbol retrieves all balances of a symbol, ordered by owner ASC.
	ListBySymbol(ctx context.Context, code string) ([]*domain.Balance, error)
}

// AccountStore provides access to accounts storage.
type AccountStore interface {
	// Insert registers an account. Returns ErrDuplicateKey if the name exists.
	Insert(ctx context.Context, a *domain.Account) error

	// Get retrieves an account by name. Returns ErrNotFound if not exists.
	Get(ctx context.Context, name domain.AccountName) (*domain.Account, error)

	// List retrieves all accounts, ordered by name ASC.
	List(ctx context.Context) ([]*domain.Account, error)
}

// EventStore provides access to the append-only ledger_events journal.
type EventStore interface {
	// InsertBulk appends events atomically. Fails entire batch on any duplicate event_id.
	InsertBulk(ctx context.Context, events []*domain.LedgerEvent) error

	// GetBySymbol retrieves events of a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, code string) ([]*domain.LedgerEvent, error)

	// GetByAccount retrieves events where the account is sender or receiver, ordered by timestamp ASC.
	GetByAccount(ctx context.Context, name domain.AccountName) ([]*domain.LedgerEvent, error)
}

// Transactor runs a function as one indivisible unit against a backend.
// Stores called with the context passed to fn take part in the transaction.
// If fn returns an error nothing it wrote is kept.
type Transactor interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores bundles the tables served by one backend.
type Stores struct {
	Stats    TokenStatsStore
	Balances BalanceStore
	Accounts AccountStore
	Events   EventStore
	Tx       Transactor
}
