package memory

import (
	"context"
	"sort"
	"sync"

	"powtoken/internal/domain"
	"powtoken/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	events []*domain.LedgerEvent
	ids    map[string]struct{}
}

// NewEventStore creates a new in-memory event journal.
func NewEventStore() *EventStore {
	return &EventStore{
		ids: make(map[string]struct{}),
	}
}

// InsertBulk appends events atomically. Fails entire batch on any duplicate event_id.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.ids[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	for _, e := range events {
		eventCopy := *e
		s.events = append(s.events, &eventCopy)
		s.ids[e.EventID] = struct{}{}
	}
	return nil
}

// GetBySymbol retrieves events of a symbol, ordered by timestamp ASC.
func (s *EventStore) GetBySymbol(_ context.Context, code string) ([]*domain.LedgerEvent, error) {
	return s.filter(func(e *domain.LedgerEvent) bool { return e.Symbol == code }), nil
}

// GetByAccount retrieves events where the account is sender or receiver, ordered by timestamp ASC.
func (s *EventStore) GetByAccount(_ context.Context, name domain.AccountName) ([]*domain.LedgerEvent, error) {
	return s.filter(func(e *domain.LedgerEvent) bool { return e.From == name || e.To == name }), nil
}

func (s *EventStore) filter(match func(*domain.LedgerEvent) bool) []*domain.LedgerEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LedgerEvent
	for _, e := range s.events {
		if match(e) {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result
}

var _ storage.EventStore = (*EventStore)(nil)
