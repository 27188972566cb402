// Package ledger implements the token ledger: per-symbol metadata, per-account
// balances and the create / issue / transfer actions over them.
// Every action runs inside one storage transaction; events are published only
// after it commits.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"powtoken/internal/difficulty"
	"powtoken/internal/digest"
	"powtoken/internal/domain"
	"powtoken/internal/observability"
	"powtoken/internal/storage"
)

// MaxMemoBytes bounds the memo of issue and transfer.
const MaxMemoBytes = 256

// Engine executes ledger actions against a storage backend.
type Engine struct {
	stores     storage.Stores
	accounts   AccountDirectory
	authorizer Authorizer
	notifier   Notifier

	owner             domain.AccountName
	initialDifficulty difficulty.Target
	now               func() time.Time
	logger            *zap.Logger
}

// Options for creating Engine.
type Options struct {
	// Required
	Stores     storage.Stores
	Accounts   AccountDirectory
	Authorizer Authorizer

	// Owner is the contract account; only it may create tokens.
	Owner domain.AccountName

	// InitialDifficulty seeds the mining target of new tokens. Zero means difficulty.Max().
	InitialDifficulty difficulty.Target

	// Optional
	Notifier Notifier
	Now      func() time.Time
	Logger   *zap.Logger
}

// New creates a new Engine.
func New(opts Options) *Engine {
	e := &Engine{
		stores:            opts.Stores,
		accounts:          opts.Accounts,
		authorizer:        opts.Authorizer,
		notifier:          opts.Notifier,
		owner:             opts.Owner,
		initialDifficulty: opts.InitialDifficulty,
		now:               opts.Now,
		logger:            opts.Logger,
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.initialDifficulty.IsZero() {
		e.initialDifficulty = difficulty.Max()
	}
	return e
}

// Now returns the engine clock in unix milliseconds.
func (e *Engine) Now() int64 {
	return e.now().UnixMilli()
}

// Create registers a new token with zero supply and fresh chain state.
func (e *Engine) Create(ctx context.Context, issuer domain.AccountName, maxSupply domain.Asset) (err error) {
	defer e.observe("create", time.Now(), &err)

	if err := e.authorize(ctx, e.owner); err != nil {
		return err
	}
	if !maxSupply.Symbol.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidSymbol, maxSupply.Symbol)
	}
	if !maxSupply.IsValid() || maxSupply.Amount <= 0 {
		return fmt.Errorf("%w: max supply must be positive", ErrInvalidAmount)
	}
	if !issuer.IsValid() {
		return fmt.Errorf("%w: issuer %q", ErrUnknownAccount, issuer)
	}

	now := e.Now()
	stats := &domain.TokenStats{
		Supply:           domain.NewAsset(0, maxSupply.Symbol),
		MaxSupply:        maxSupply,
		Issuer:           issuer,
		Difficulty:       e.initialDifficulty,
		BlockHeight:      0,
		PreviousDigest:   digest.Zero,
		LastRetargetTime: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = e.stores.Tx.Atomic(ctx, func(ctx context.Context) error {
		if err := e.stores.Stats.Insert(ctx, stats); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, maxSupply.Symbol.Code)
			}
			return fmt.Errorf("insert token %s: %w", maxSupply.Symbol.Code, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("token created",
		zap.String("symbol", maxSupply.Symbol.Code),
		zap.Stringer("max_supply", maxSupply),
		zap.String("issuer", issuer.String()),
	)
	ev := e.NewEvent(domain.EventCreate, stats)
	ev.To = issuer
	ev.Quantity = maxSupply
	e.Publish(ctx, []*domain.LedgerEvent{ev})
	return nil
}

// Issue mints quantity into the issuer's balance and, when to differs from
// the issuer, moves it on to to.
func (e *Engine) Issue(ctx context.Context, to domain.AccountName, quantity domain.Asset, memo string) (err error) {
	defer e.observe("issue", time.Now(), &err)

	if !quantity.Symbol.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidSymbol, quantity.Symbol)
	}
	if len(memo) > MaxMemoBytes {
		return fmt.Errorf("%w: %d bytes", ErrMemoTooLong, len(memo))
	}

	var (
		events []*domain.LedgerEvent
		supply domain.Asset
	)
	err = e.stores.Tx.Atomic(ctx, func(ctx context.Context) error {
		st, err := e.loadStats(ctx, quantity.Symbol.Code)
		if err != nil {
			return err
		}
		if err := e.authorize(ctx, st.Issuer); err != nil {
			return err
		}
		if err := checkQuantity(quantity, st); err != nil {
			return err
		}
		if quantity.Amount > st.MaxSupply.Amount-st.Supply.Amount {
			return fmt.Errorf("%w: %s", ErrSupplyExceeded, quantity)
		}

		st.Supply, err = st.Supply.Add(quantity)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		st.UpdatedAt = e.Now()
		if err := e.stores.Stats.Update(ctx, st); err != nil {
			return fmt.Errorf("update token %s: %w", st.Code(), err)
		}
		if err := e.credit(ctx, st.Issuer, quantity); err != nil {
			return err
		}
		supply = st.Supply

		ev := e.NewEvent(domain.EventIssue, st)
		ev.From = st.Issuer
		ev.To = st.Issuer
		ev.Quantity = quantity
		ev.Memo = memo
		events = append(events, ev)

		if to != st.Issuer {
			if err := e.checkAccount(ctx, to); err != nil {
				return err
			}
			if err := e.move(ctx, st.Issuer, to, quantity); err != nil {
				return err
			}
			tr := e.NewEvent(domain.EventTransfer, st)
			tr.From = st.Issuer
			tr.To = to
			tr.Quantity = quantity
			tr.Memo = memo
			events = append(events, tr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("tokens issued",
		zap.String("to", to.String()),
		zap.Stringer("quantity", quantity),
		zap.Stringer("supply", supply),
	)
	UpdateSupplyGauge(supply)
	e.Publish(ctx, events)
	return nil
}

// Transfer moves quantity from one account to another.
func (e *Engine) Transfer(ctx context.Context, from, to domain.AccountName, quantity domain.Asset, memo string) (err error) {
	defer e.observe("transfer", time.Now(), &err)

	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfTransfer, from)
	}
	if err := e.authorize(ctx, from); err != nil {
		return err
	}
	if err := e.checkAccount(ctx, to); err != nil {
		return err
	}
	if !quantity.Symbol.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidSymbol, quantity.Symbol)
	}

	var ev *domain.LedgerEvent
	err = e.stores.Tx.Atomic(ctx, func(ctx context.Context) error {
		st, err := e.loadStats(ctx, quantity.Symbol.Code)
		if err != nil {
			return err
		}
		if err := checkQuantity(quantity, st); err != nil {
			return err
		}
		if len(memo) > MaxMemoBytes {
			return fmt.Errorf("%w: %d bytes", ErrMemoTooLong, len(memo))
		}
		if err := e.move(ctx, from, to, quantity); err != nil {
			return err
		}

		ev = e.NewEvent(domain.EventTransfer, st)
		ev.From = from
		ev.To = to
		ev.Quantity = quantity
		ev.Memo = memo
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Debug("transfer",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Stringer("quantity", quantity),
	)
	e.Publish(ctx, []*domain.LedgerEvent{ev})
	return nil
}

// CreditReward adds a freshly minted reward to owner's balance. The caller is
// responsible for the matching supply increase; when ctx carries a storage
// transaction the credit joins it.
func (e *Engine) CreditReward(ctx context.Context, owner domain.AccountName, amount domain.Asset) error {
	if amount.Amount <= 0 {
		return fmt.Errorf("%w: reward must be positive", ErrInvalidAmount)
	}
	return e.stores.Tx.Atomic(ctx, func(ctx context.Context) error {
		return e.credit(ctx, owner, amount)
	})
}

// move debits from and credits to.
func (e *Engine) move(ctx context.Context, from, to domain.AccountName, quantity domain.Asset) error {
	if err := e.debit(ctx, from, quantity); err != nil {
		return err
	}
	return e.credit(ctx, to, quantity)
}

// debit subtracts value from owner's balance, deleting the row when it reaches zero.
func (e *Engine) debit(ctx context.Context, owner domain.AccountName, value domain.Asset) error {
	bal, err := e.stores.Balances.Get(ctx, owner, value.Symbol.Code)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s holds no %s", ErrOverdrawn, owner, value.Symbol.Code)
	}
	if err != nil {
		return fmt.Errorf("get balance %s/%s: %w", owner, value.Symbol.Code, err)
	}
	if bal.Amount.Amount < value.Amount {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrOverdrawn, owner, bal.Amount, value)
	}

	if bal.Amount.Amount == value.Amount {
		if err := e.stores.Balances.Delete(ctx, owner, value.Symbol.Code); err != nil {
			return fmt.Errorf("delete balance %s/%s: %w", owner, value.Symbol.Code, err)
		}
		return nil
	}

	left, err := bal.Amount.Sub(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	bal.Amount = left
	bal.UpdatedAt = e.Now()
	if err := e.stores.Balances.Put(ctx, bal); err != nil {
		return fmt.Errorf("put balance %s/%s: %w", owner, value.Symbol.Code, err)
	}
	return nil
}

// credit adds value to owner's balance, creating the row on first credit.
func (e *Engine) credit(ctx context.Context, owner domain.AccountName, value domain.Asset) error {
	bal, err := e.stores.Balances.Get(ctx, owner, value.Symbol.Code)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		bal = &domain.Balance{Owner: owner, Amount: value}
	case err != nil:
		return fmt.Errorf("get balance %s/%s: %w", owner, value.Symbol.Code, err)
	default:
		sum, err := bal.Amount.Add(value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		bal.Amount = sum
	}
	bal.UpdatedAt = e.Now()
	if err := e.stores.Balances.Put(ctx, bal); err != nil {
		return fmt.Errorf("put balance %s/%s: %w", owner, value.Symbol.Code, err)
	}
	return nil
}

// loadStats reads the token row, locking it when ctx carries a transaction.
func (e *Engine) loadStats(ctx context.Context, code string) (*domain.TokenStats, error) {
	st, err := e.stores.Stats.Get(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("get token %s: %w", code, err)
	}
	return st, nil
}

// checkQuantity validates a positive quantity matching the token's symbol.
func checkQuantity(quantity domain.Asset, st *domain.TokenStats) error {
	if !quantity.IsValid() || quantity.Amount <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, quantity)
	}
	if quantity.Symbol != st.Supply.Symbol {
		return fmt.Errorf("%w: symbol precision mismatch %s vs %s", ErrInvalidAmount, quantity.Symbol, st.Supply.Symbol)
	}
	return nil
}

// CheckAccount returns ErrUnknownAccount unless name is registered.
func (e *Engine) CheckAccount(ctx context.Context, name domain.AccountName) error {
	return e.checkAccount(ctx, name)
}

func (e *Engine) checkAccount(ctx context.Context, name domain.AccountName) error {
	if !name.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownAccount, name)
	}
	ok, err := e.accounts.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("lookup account %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, name)
	}
	return nil
}

// Authorize returns ErrUnauthorized unless the caller controls account.
func (e *Engine) Authorize(ctx context.Context, account domain.AccountName) error {
	return e.authorize(ctx, account)
}

func (e *Engine) authorize(ctx context.Context, account domain.AccountName) error {
	if e.authorizer == nil {
		return fmt.Errorf("%w of %s: no authorizer", ErrUnauthorized, account)
	}
	if err := e.authorizer.Authorize(ctx, account); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%w of %s: %v", ErrUnauthorized, account, err)
	}
	return nil
}

// NewEvent builds an event stamped with a fresh id, the engine clock and the
// token's chain state.
func (e *Engine) NewEvent(kind domain.EventKind, st *domain.TokenStats) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		EventID:   uuid.NewString(),
		Kind:      kind,
		Symbol:    st.Code(),
		Height:    st.BlockHeight,
		Target:    st.Difficulty.String(),
		Timestamp: e.Now(),
	}
}

// Publish hands committed events to the notifier.
func (e *Engine) Publish(ctx context.Context, events []*domain.LedgerEvent) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		observability.RecordEventPublished(ev.Kind.String())
	}
	e.notifier.Notify(ctx, events)
}

// Atomic runs fn in one storage transaction of the engine's backend.
func (e *Engine) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return e.stores.Tx.Atomic(ctx, fn)
}

// Stores returns the backend the engine writes to.
func (e *Engine) Stores() storage.Stores {
	return e.stores
}

// Logger returns the engine logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

func (e *Engine) observe(action string, start time.Time, errp *error) {
	err := *errp
	observability.RecordAction(action, Code(err), time.Since(start).Seconds())
	if err != nil {
		fields := []zap.Field{zap.String("action", action), zap.Error(err)}
		if IsRejection(err) {
			e.logger.Debug("action rejected", fields...)
		} else {
			e.logger.Error("action failed", fields...)
		}
	}
}

// UpdateSupplyGauge publishes a supply value in whole tokens.
func UpdateSupplyGauge(supply domain.Asset) {
	observability.UpdateSupply(supply.Symbol.Code, float64(supply.Amount)/float64(supply.Symbol.Scale()))
}
