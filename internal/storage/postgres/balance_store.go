package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	pool *Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Get retrieves a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Get(ctx context.Context, owner domain.AccountName, code string) (b *domain.Balance, err error) {
	defer func(start time.Time) { observe("balances.get", start, err) }(time.Now())

	query := `
		SELECT owner, symbol_code, symbol_precision, amount, updated_at
		FROM balances
		WHERE owner = $1 AND symbol_code = $2
	`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}

	row := s.pool.q(ctx).QueryRow(ctx, query, string(owner), code)
	b, err = scanBalance(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Put inserts or replaces a balance. Returns ErrInvalidInput if Amount is not positive.
func (s *BalanceStore) Put(ctx context.Context, b *domain.Balance) (err error) {
	defer func(start time.Time) { observe("balances.put", start, err) }(time.Now())

	if b == nil || b.Owner == "" || b.Amount.Symbol.Code == "" || b.Amount.Amount <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO balances (owner, symbol_code, symbol_precision, amount, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner, symbol_code) DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.q(ctx).Exec(ctx, query,
		string(b.Owner),
		b.Amount.Symbol.Code,
		int16(b.Amount.Symbol.Precision),
		b.Amount.Amount,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put balance: %w", err)
	}
	return nil
}

// Delete removes a balance. Returns ErrNotFound if not exists.
func (s *BalanceStore) Delete(ctx context.Context, owner domain.AccountName, code string) (err error) {
	defer func(start time.Time) { observe("balances.delete", start, err) }(time.Now())

	tag, err := s.pool.q(ctx).Exec(ctx,
		`DELETE FROM balances WHERE owner = $1 AND symbol_code = $2`,
		string(owner), code,
	)
	if err != nil {
		return fmt.Errorf("delete balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByOwner retrieves all balances of an owner, ordered by symbol code ASC.
func (s *BalanceStore) ListByOwner(ctx context.Context, owner domain.AccountName) ([]*domain.Balance, error) {
	query := `
		SELECT owner, symbol_code, symbol_precision, amount, updated_at
		FROM balances
		WHERE owner = $1
		ORDER BY symbol_code ASC
	`
	return s.list(ctx, "balances.list_by_owner", query, string(owner))
}

// ListBySymbol retrieves all balances of a symbol, ordered by owner ASC.
func (s *BalanceStore) ListBySymbol(ctx context.Context, code string) ([]*domain.Balance, error) {
	query := `
		SELECT owner, symbol_code, symbol_precision, amount, updated_at
		FROM balances
		WHERE symbol_code = $1
		ORDER BY owner ASC
	`
	return s.list(ctx, "balances.list_by_symbol", query, code)
}

func (s *BalanceStore) list(ctx context.Context, op, query string, arg string) (result []*domain.Balance, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	rows, err := s.pool.q(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return result, nil
}

// scanBalance scans a single row into Balance.
func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var (
		b         domain.Balance
		owner     string
		code      string
		precision int16
		amount    int64
	)

	if err := row.Scan(&owner, &code, &precision, &amount, &b.UpdatedAt); err != nil {
		return nil, err
	}

	b.Owner = domain.AccountName(owner)
	b.Amount = domain.NewAsset(amount, domain.NewSymbol(code, uint8(precision)))
	return &b, nil
}
