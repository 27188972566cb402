package memory

import (
	"context"
	"sync"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// DB holds the mutable ledger tables (token_stats, balances) behind a single
// lock so that Atomic serializes whole actions across both tables.
type DB struct {
	mu       sync.RWMutex
	stats    map[string]*domain.TokenStats // keyed by symbol code
	balances map[balanceKey]*domain.Balance
}

type balanceKey struct {
	owner domain.AccountName
	code  string
}

// NewDB creates an empty in-memory database.
func NewDB() *DB {
	return &DB{
		stats:    make(map[string]*domain.TokenStats),
		balances: make(map[balanceKey]*domain.Balance),
	}
}

// NewStores wires every memory store around one DB.
func NewStores() storage.Stores {
	db := NewDB()
	return storage.Stores{
		Stats:    NewTokenStatsStore(db),
		Balances: NewBalanceStore(db),
		Accounts: NewAccountStore(),
		Events:   NewEventStore(),
		Tx:       db,
	}
}

type txKey struct{}

// memTx records undo steps for every write made inside Atomic.
type memTx struct {
	db   *DB
	undo []func()
}

// Atomic runs fn holding the write lock. Writes made through ctx are undone
// in reverse order if fn fails. A nested call joins the outer transaction.
func (db *DB) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.txFrom(ctx) != nil {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx := &memTx{db: db}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (db *DB) txFrom(ctx context.Context) *memTx {
	tx, ok := ctx.Value(txKey{}).(*memTx)
	if !ok || tx.db != db {
		return nil
	}
	return tx
}

// rlock takes the read lock unless ctx already holds the write lock.
func (db *DB) rlock(ctx context.Context) func() {
	if db.txFrom(ctx) != nil {
		return func() {}
	}
	db.mu.RLock()
	return db.mu.RUnlock
}

// lock takes the write lock unless ctx already holds it.
func (db *DB) lock(ctx context.Context) func() {
	if db.txFrom(ctx) != nil {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// onRollback registers an undo step when ctx carries a transaction.
func (db *DB) onRollback(ctx context.Context, undo func()) {
	if tx := db.txFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

var _ storage.Transactor = (*DB)(nil)
