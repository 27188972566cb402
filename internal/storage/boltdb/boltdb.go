// Package boltdb stores the ledger tables in a single bbolt file.
// Rows are JSON documents; keys are chosen so that bbolt's byte ordering
// yields the ordering each query promises.
package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"powtoken/internal/storage"
)

var (
	bucketTokenStats = []byte("token_stats")
	bucketBalances   = []byte("balances")
	bucketAccounts   = []byte("accounts")
	bucketEvents     = []byte("ledger_events")
	bucketEventIDs   = []byte("ledger_event_ids")
)

// DB wraps a bbolt database for dependency injection.
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the database file at path and ensures all buckets exist.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	if err := bdb.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketTokenStats, bucketBalances, bucketAccounts, bucketEvents, bucketEventIDs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return &DB{db: bdb}, nil
}

// Close closes the database file.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// NewStores wires every bbolt store around one database.
func NewStores(d *DB) storage.Stores {
	return storage.Stores{
		Stats:    NewTokenStatsStore(d),
		Balances: NewBalanceStore(d),
		Accounts: NewAccountStore(d),
		Events:   NewEventStore(d),
		Tx:       d,
	}
}

type txKey struct{}

// Atomic runs fn inside a single read-write bbolt transaction.
// bbolt allows one writer at a time, which serializes every action.
// A nested call joins the outer transaction.
func (d *DB) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.txFrom(ctx) != nil {
		return fn(ctx)
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (d *DB) txFrom(ctx context.Context) *bolt.Tx {
	tx, ok := ctx.Value(txKey{}).(*bolt.Tx)
	if !ok || tx.DB() != d.db {
		return nil
	}
	return tx
}

// view runs fn in the transaction bound to ctx, or a fresh read-only one.
func (d *DB) view(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if tx := d.txFrom(ctx); tx != nil {
		return fn(tx)
	}
	return d.db.View(fn)
}

// update runs fn in the transaction bound to ctx, or a fresh read-write one.
func (d *DB) update(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if tx := d.txFrom(ctx); tx != nil {
		if !tx.Writable() {
			return errors.New("bolt: write inside read-only transaction")
		}
		return fn(tx)
	}
	return d.db.Update(fn)
}

// getJSON decodes the value at key into v. Returns ErrNotFound if absent.
func getJSON(b *bolt.Bucket, key []byte, v any) error {
	data := b.Get(key)
	if data == nil {
		return storage.ErrNotFound
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode row %q: %w", key, err)
	}
	return nil
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	return b.Put(key, data)
}

var _ storage.Transactor = (*DB)(nil)
