// Package auth decides which account the caller of an action speaks for.
// The API attaches a verified principal to the request context; the ledger
// asks Authorizer whether that principal controls a given account.
package auth

import (
	"context"
	"fmt"

	"powtoken/internal/domain"
	"powtoken/internal/ledger"
)

type principalKey struct{}

// WithPrincipal returns a context acting on behalf of account.
func WithPrincipal(ctx context.Context, account domain.AccountName) context.Context {
	return context.WithValue(ctx, principalKey{}, account)
}

// PrincipalFrom returns the account the context acts for.
func PrincipalFrom(ctx context.Context) (domain.AccountName, bool) {
	name, ok := ctx.Value(principalKey{}).(domain.AccountName)
	return name, ok && name != ""
}

// Authorizer grants an account only to a context carrying it as principal.
type Authorizer struct{}

var _ ledger.Authorizer = Authorizer{}

// Authorize implements ledger.Authorizer.
func (Authorizer) Authorize(ctx context.Context, account domain.AccountName) error {
	principal, ok := PrincipalFrom(ctx)
	if !ok {
		return fmt.Errorf("%w of %s: anonymous caller", ledger.ErrUnauthorized, account)
	}
	if principal != account {
		return fmt.Errorf("%w of %s: caller is %s", ledger.ErrUnauthorized, account, principal)
	}
	return nil
}
