package clickhouse

import (
	"context"
	"fmt"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are rejected by explicit checks.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	event_id, kind, symbol_code, from_account, to_account,
	quantity, amount, memo, height, digest, target, timestamp_ms`

// InsertBulk appends events in one batch. Fails entire batch on any duplicate event_id.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, e := range events {
		exists, err := s.exists(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO ledger_events (`+eventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		quantity := ""
		if e.Quantity.Symbol.Code != "" {
			quantity = e.Quantity.String()
		}
		err = batch.Append(
			e.EventID,
			string(e.Kind),
			e.Symbol,
			string(e.From),
			string(e.To),
			quantity,
			e.Quantity.Amount,
			e.Memo,
			e.Height,
			e.Digest,
			e.Target,
			e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbol retrieves events of a symbol, ordered by timestamp ASC.
func (s *EventStore) GetBySymbol(ctx context.Context, code string) ([]*domain.LedgerEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ledger_events
		WHERE symbol_code = ?
		ORDER BY timestamp_ms ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanLedgerEvents(rows)
}

// GetByAccount retrieves events where the account is sender or receiver, ordered by timestamp ASC.
func (s *EventStore) GetByAccount(ctx context.Context, name domain.AccountName) ([]*domain.LedgerEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ledger_events
		WHERE from_account = ? OR to_account = ?
		ORDER BY timestamp_ms ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, string(name), string(name))
	if err != nil {
		return nil, fmt.Errorf("query by account: %w", err)
	}
	defer rows.Close()

	return scanLedgerEvents(rows)
}

// MinedPerSymbol returns the number of accepted solutions per symbol code.
func (s *EventStore) MinedPerSymbol(ctx context.Context) (map[string]uint64, error) {
	query := `
		SELECT symbol_code, count() FROM ledger_events
		WHERE kind = ?
		GROUP BY symbol_code
	`

	rows, err := s.conn.Query(ctx, query, string(domain.EventMine))
	if err != nil {
		return nil, fmt.Errorf("query mined per symbol: %w", err)
	}
	defer rows.Close()

	result := make(map[string]uint64)
	for rows.Next() {
		var code string
		var count uint64
		if err := rows.Scan(&code, &count); err != nil {
			return nil, fmt.Errorf("scan mined count: %w", err)
		}
		result[code] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mined counts: %w", err)
	}
	return result, nil
}

func (s *EventStore) exists(ctx context.Context, eventID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM ledger_events WHERE event_id = ?`, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanLedgerEvents scans multiple rows.
func scanLedgerEvents(rows chRows) ([]*domain.LedgerEvent, error) {
	var events []*domain.LedgerEvent

	for rows.Next() {
		var (
			e              domain.LedgerEvent
			kind, from, to string
			quantity       string
			amount         int64
		)

		err := rows.Scan(
			&e.EventID, &kind, &e.Symbol, &from, &to,
			&quantity, &amount, &e.Memo, &e.Height, &e.Digest, &e.Target, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger event row: %w", err)
		}

		e.Kind = domain.EventKind(kind)
		e.From = domain.AccountName(from)
		e.To = domain.AccountName(to)
		if quantity != "" {
			if e.Quantity, err = domain.ParseAsset(quantity); err != nil {
				return nil, fmt.Errorf("decode quantity: %w", err)
			}
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger event rows: %w", err)
	}

	return events, nil
}
