// Package notify delivers committed ledger events to the parties involved:
// the event journal, connected websocket subscribers and the log.
package notify

import (
	"context"

	"powtoken/internal/domain"
	"powtoken/internal/ledger"
)

// EventMessage is the wire form of a ledger event.
type EventMessage struct {
	EventID   string `json:"event_id"`
	Kind      string `json:"kind"`
	Symbol    string `json:"symbol"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Quantity  string `json:"quantity,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Height    uint64 `json:"height"`
	Digest    string `json:"digest,omitempty"`
	Target    string `json:"target,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewEventMessage converts an event to its wire form.
func NewEventMessage(e *domain.LedgerEvent) EventMessage {
	m := EventMessage{
		EventID:   e.EventID,
		Kind:      e.Kind.String(),
		Symbol:    e.Symbol,
		From:      e.From.String(),
		To:        e.To.String(),
		Memo:      e.Memo,
		Height:    e.Height,
		Digest:    e.Digest,
		Target:    e.Target,
		Timestamp: e.Timestamp,
	}
	if e.Quantity != (domain.Asset{}) {
		m.Quantity = e.Quantity.String()
	}
	return m
}

// Involves reports whether account sent or received the event.
func (m EventMessage) Involves(account string) bool {
	return m.From == account || m.To == account
}

// Multi fans events out to several notifiers in order.
type Multi []ledger.Notifier

var _ ledger.Notifier = Multi(nil)

// Notify implements ledger.Notifier.
func (m Multi) Notify(ctx context.Context, events []*domain.LedgerEvent) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, events)
		}
	}
}
