package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"powtoken/internal/domain"
	"powtoken/internal/observability"
	"powtoken/internal/storage"
)

// Journal appends events to an event store.
type Journal struct {
	name    string
	store   storage.EventStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewJournal creates a journal notifier. name labels failure metrics,
// e.g. "postgres" or "clickhouse".
func NewJournal(name string, store storage.EventStore, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		name:    name,
		store:   store,
		timeout: 5 * time.Second,
		logger:  logger.Named("journal"),
	}
}

// Notify implements ledger.Notifier. The write is detached from the caller's
// cancellation since the action it records has already committed.
func (j *Journal) Notify(ctx context.Context, events []*domain.LedgerEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
	defer cancel()

	if err := j.store.InsertBulk(ctx, events); err != nil {
		observability.RecordNotifierFailure("journal_" + j.name)
		j.logger.Error("journal write failed",
			zap.String("journal", j.name),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}
