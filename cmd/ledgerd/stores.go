package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"powtoken/internal/config"
	"powtoken/internal/storage"
	"powtoken/internal/storage/boltdb"
	chstore "powtoken/internal/storage/clickhouse"
	"powtoken/internal/storage/memory"
	"powtoken/internal/storage/migrations"
	pgstore "powtoken/internal/storage/postgres"
)

// backendStores holds the ledger tables and the optional analytics journal.
type backendStores struct {
	ledger    storage.Stores
	analytics storage.EventStore // nil without a ClickHouse DSN
	cleanup   func()
}

// createStores opens the configured backend, running migrations when asked.
func createStores(ctx context.Context, cfg config.Storage, logger *zap.Logger) (*backendStores, error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	out := &backendStores{cleanup: cleanup}

	switch cfg.Backend {
	case config.BackendMemory:
		out.ledger = memory.NewStores()

	case config.BackendBolt:
		db, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { db.Close() })
		out.ledger = boltdb.NewStores(db)

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if cfg.Migrate {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				cleanup()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied", zap.Strings("files", applied))
		}
		out.ledger = pgstore.NewStores(pool)

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if cfg.ClickhouseDSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		out.analytics = chstore.NewEventStore(conn)
	}

	return out, nil
}
