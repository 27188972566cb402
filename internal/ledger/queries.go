package ledger

import (
	"context"
	"errors"
	"fmt"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// Stats returns the token row of a symbol code.
func (e *Engine) Stats(ctx context.Context, code string) (*domain.TokenStats, error) {
	return e.loadStats(ctx, code)
}

// Tokens returns every token row, ordered by symbol code.
func (e *Engine) Tokens(ctx context.Context) ([]*domain.TokenStats, error) {
	list, err := e.stores.Stats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return list, nil
}

// Supply returns the circulating supply of a symbol code.
func (e *Engine) Supply(ctx context.Context, code string) (domain.Asset, error) {
	st, err := e.loadStats(ctx, code)
	if err != nil {
		return domain.Asset{}, err
	}
	return st.Supply, nil
}

// Balance returns owner's holding of a symbol code. An owner without a row
// holds zero of an existing symbol.
func (e *Engine) Balance(ctx context.Context, owner domain.AccountName, code string) (domain.Asset, error) {
	bal, err := e.stores.Balances.Get(ctx, owner, code)
	if err == nil {
		return bal.Amount, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Asset{}, fmt.Errorf("get balance %s/%s: %w", owner, code, err)
	}

	st, err := e.loadStats(ctx, code)
	if err != nil {
		return domain.Asset{}, err
	}
	return domain.NewAsset(0, st.Supply.Symbol), nil
}

// Balances returns every non-zero holding of owner, ordered by symbol code.
func (e *Engine) Balances(ctx context.Context, owner domain.AccountName) ([]*domain.Balance, error) {
	list, err := e.stores.Balances.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list balances of %s: %w", owner, err)
	}
	return list, nil
}

// Holders returns every non-zero holding of a symbol code, ordered by owner.
func (e *Engine) Holders(ctx context.Context, code string) ([]*domain.Balance, error) {
	if _, err := e.loadStats(ctx, code); err != nil {
		return nil, err
	}
	list, err := e.stores.Balances.ListBySymbol(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list holders of %s: %w", code, err)
	}
	return list, nil
}

// Audit checks that the balances of a symbol sum to its supply.
func (e *Engine) Audit(ctx context.Context, code string) error {
	return e.stores.Tx.Atomic(ctx, func(ctx context.Context) error {
		st, err := e.loadStats(ctx, code)
		if err != nil {
			return err
		}
		holders, err := e.stores.Balances.ListBySymbol(ctx, code)
		if err != nil {
			return fmt.Errorf("list holders of %s: %w", code, err)
		}

		sum := domain.NewAsset(0, st.Supply.Symbol)
		for _, b := range holders {
			if b.Amount.Amount <= 0 {
				return fmt.Errorf("audit %s: %s holds non-positive %s", code, b.Owner, b.Amount)
			}
			if sum, err = sum.Add(b.Amount); err != nil {
				return fmt.Errorf("audit %s: %w", code, err)
			}
		}
		if sum != st.Supply {
			return fmt.Errorf("audit %s: balances sum to %s, supply is %s", code, sum, st.Supply)
		}
		if st.Supply.Amount > st.MaxSupply.Amount {
			return fmt.Errorf("audit %s: supply %s exceeds max %s", code, st.Supply, st.MaxSupply)
		}
		return nil
	})
}

// Events returns the journal of a symbol code.
func (e *Engine) Events(ctx context.Context, code string) ([]*domain.LedgerEvent, error) {
	if e.stores.Events == nil {
		return nil, nil
	}
	list, err := e.stores.Events.GetBySymbol(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", code, err)
	}
	return list, nil
}

// AccountEvents returns the journal entries an account sent or received.
func (e *Engine) AccountEvents(ctx context.Context, name domain.AccountName) ([]*domain.LedgerEvent, error) {
	if e.stores.Events == nil {
		return nil, nil
	}
	list, err := e.stores.Events.GetByAccount(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", name, err)
	}
	return list, nil
}
