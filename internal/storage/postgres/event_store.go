package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	event_id, kind, symbol_code, from_account, to_account,
	quantity, memo, height, digest, target, timestamp_ms`

// InsertBulk appends events atomically. Fails entire batch on any duplicate event_id.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	return s.pool.Atomic(ctx, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO ledger_events (` + eventColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		for _, e := range events {
			if e == nil || e.EventID == "" {
				return storage.ErrInvalidInput
			}
			quantity := ""
			if e.Quantity.Symbol.Code != "" {
				quantity = e.Quantity.String()
			}
			batch.Queue(query,
				e.EventID,
				string(e.Kind),
				e.Symbol,
				string(e.From),
				string(e.To),
				quantity,
				e.Memo,
				int64(e.Height),
				e.Digest,
				e.Target,
				e.Timestamp,
			)
		}

		br := txFromContext(ctx).SendBatch(ctx, batch)

		for range events {
			if _, err := br.Exec(); err != nil {
				br.Close()
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert ledger event: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
		return nil
	})
}

// GetBySymbol retrieves events of a symbol, ordered by timestamp ASC.
func (s *EventStore) GetBySymbol(ctx context.Context, code string) ([]*domain.LedgerEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ledger_events
		WHERE symbol_code = $1
		ORDER BY timestamp_ms ASC, event_id ASC
	`
	return s.query(ctx, query, code)
}

// GetByAccount retrieves events where the account is sender or receiver, ordered by timestamp ASC.
func (s *EventStore) GetByAccount(ctx context.Context, name domain.AccountName) ([]*domain.LedgerEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ledger_events
		WHERE from_account = $1 OR to_account = $1
		ORDER BY timestamp_ms ASC, event_id ASC
	`
	return s.query(ctx, query, string(name))
}

func (s *EventStore) query(ctx context.Context, query string, arg string) ([]*domain.LedgerEvent, error) {
	rows, err := s.pool.q(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()

	var result []*domain.LedgerEvent
	for rows.Next() {
		e, err := scanLedgerEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger events: %w", err)
	}
	return result, nil
}

// scanLedgerEvent scans a single row into LedgerEvent.
func scanLedgerEvent(row pgx.Row) (*domain.LedgerEvent, error) {
	var (
		e        domain.LedgerEvent
		kind     string
		from     string
		to       string
		quantity string
		height   int64
	)

	err := row.Scan(
		&e.EventID,
		&kind,
		&e.Symbol,
		&from,
		&to,
		&quantity,
		&e.Memo,
		&height,
		&e.Digest,
		&e.Target,
		&e.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = domain.EventKind(kind)
	e.From = domain.AccountName(from)
	e.To = domain.AccountName(to)
	e.Height = uint64(height)
	if quantity != "" {
		if e.Quantity, err = domain.ParseAsset(quantity); err != nil {
			return nil, fmt.Errorf("decode quantity: %w", err)
		}
	}
	return &e, nil
}
