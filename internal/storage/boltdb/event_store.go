package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// EventStore implements storage.EventStore using bbolt.
// Events are keyed by timestamp || sequence (big-endian), so a bucket scan
// returns them in timestamp order.
type EventStore struct {
	d *DB
}

// NewEventStore creates a new EventStore.
func NewEventStore(d *DB) *EventStore {
	return &EventStore{d: d}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// InsertBulk appends events atomically. Fails entire batch on any duplicate event_id.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.d.update(ctx, func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEvents)
		ib := tx.Bucket(bucketEventIDs)

		seen := make(map[string]struct{}, len(events))
		for _, e := range events {
			if e == nil || e.EventID == "" {
				return storage.ErrInvalidInput
			}
			if _, dup := seen[e.EventID]; dup || ib.Get([]byte(e.EventID)) != nil {
				return storage.ErrDuplicateKey
			}
			seen[e.EventID] = struct{}{}
		}

		for _, e := range events {
			seq, err := eb.NextSequence()
			if err != nil {
				return fmt.Errorf("next event sequence: %w", err)
			}
			key := make([]byte, 16)
			binary.BigEndian.PutUint64(key[:8], uint64(e.Timestamp))
			binary.BigEndian.PutUint64(key[8:], seq)

			if err := putJSON(eb, key, e); err != nil {
				return err
			}
			if err := ib.Put([]byte(e.EventID), key); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetBySymbol retrieves events of a symbol, ordered by timestamp ASC.
func (s *EventStore) GetBySymbol(ctx context.Context, code string) ([]*domain.LedgerEvent, error) {
	return s.scan(ctx, func(e *domain.LedgerEvent) bool { return e.Symbol == code })
}

// GetByAccount retrieves events where the account is sender or receiver, ordered by timestamp ASC.
func (s *EventStore) GetByAccount(ctx context.Context, name domain.AccountName) ([]*domain.LedgerEvent, error) {
	return s.scan(ctx, func(e *domain.LedgerEvent) bool { return e.From == name || e.To == name })
}

func (s *EventStore) scan(ctx context.Context, match func(*domain.LedgerEvent) bool) ([]*domain.LedgerEvent, error) {
	var result []*domain.LedgerEvent
	err := s.d.view(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, v []byte) error {
			var e domain.LedgerEvent
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode ledger event: %w", err)
			}
			if match(&e) {
				result = append(result, &e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
