// Package accounts keeps the registry of ledger participants and their
// ed25519 public keys.
package accounts

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

var (
	// ErrInvalidName is returned for names outside [a-z1-5.]{1,12}.
	ErrInvalidName = errors.New("invalid account name")

	// ErrExists is returned when registering a name twice.
	ErrExists = errors.New("account already exists")

	// ErrNotFound is returned for unregistered names.
	ErrNotFound = errors.New("account not found")

	// ErrNoKey is returned when an account has no public key on file.
	ErrNoKey = errors.New("account has no public key")
)

// Directory registers accounts and answers existence checks.
type Directory struct {
	store  storage.AccountStore
	now    func() time.Time
	logger *zap.Logger
}

// NewDirectory creates a directory over an account store.
func NewDirectory(store storage.AccountStore, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{store: store, now: time.Now, logger: logger}
}

// Register adds an account. publicKey may be empty.
func (d *Directory) Register(ctx context.Context, name domain.AccountName, publicKey string) (*domain.Account, error) {
	if !name.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if publicKey != "" {
		if _, err := ParsePublicKey(publicKey); err != nil {
			return nil, err
		}
	}

	acc := &domain.Account{
		Name:      name,
		PublicKey: publicKey,
		CreatedAt: d.now().UnixMilli(),
	}
	if err := d.store.Insert(ctx, acc); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %s", ErrExists, name)
		}
		return nil, fmt.Errorf("insert account %s: %w", name, err)
	}

	d.logger.Info("account registered", zap.String("account", name.String()), zap.Bool("has_key", publicKey != ""))
	return acc, nil
}

// Exists reports whether name is registered.
func (d *Directory) Exists(ctx context.Context, name domain.AccountName) (bool, error) {
	_, err := d.store.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns a registered account.
func (d *Directory) Get(ctx context.Context, name domain.AccountName) (*domain.Account, error) {
	acc, err := d.store.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", name, err)
	}
	return acc, nil
}

// List returns every account ordered by name.
func (d *Directory) List(ctx context.Context) ([]*domain.Account, error) {
	return d.store.List(ctx)
}

// PublicKey returns the decoded key of a registered account.
func (d *Directory) PublicKey(ctx context.Context, name domain.AccountName) (ed25519.PublicKey, error) {
	acc, err := d.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if acc.PublicKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoKey, name)
	}
	return ParsePublicKey(acc.PublicKey)
}
