package notify

import (
	"context"

	"go.uber.org/zap"

	"powtoken/internal/domain"
)

// Log writes one structured line per event and recipient.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log notifier.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("notify")}
}

// Notify implements ledger.Notifier.
func (l *Log) Notify(_ context.Context, events []*domain.LedgerEvent) {
	for _, e := range events {
		for _, r := range e.Recipients() {
			l.logger.Info("notify",
				zap.String("recipient", r.String()),
				zap.String("kind", e.Kind.String()),
				zap.String("symbol", e.Symbol),
				zap.String("event_id", e.EventID),
			)
		}
	}
}
