package ledger

import (
	"context"

	"powtoken/internal/domain"
)

// Authorizer checks that the caller of the current action controls account.
// It returns an error wrapping ErrUnauthorized when it does not.
type Authorizer interface {
	Authorize(ctx context.Context, account domain.AccountName) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, account domain.AccountName) error

// Authorize calls f.
func (f AuthorizerFunc) Authorize(ctx context.Context, account domain.AccountName) error {
	return f(ctx, account)
}

// AccountDirectory reports whether an account is registered.
type AccountDirectory interface {
	Exists(ctx context.Context, name domain.AccountName) (bool, error)
}

// Notifier receives events after the action that produced them committed.
// Delivery failures are the notifier's concern and never undo the action.
type Notifier interface {
	Notify(ctx context.Context, events []*domain.LedgerEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, []*domain.LedgerEvent) {}
