// Package main runs the ledger daemon: the token ledger, the mining gate and
// the HTTP API over one storage backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"powtoken/internal/accounts"
	"powtoken/internal/api"
	"powtoken/internal/auth"
	"powtoken/internal/config"
	"powtoken/internal/domain"
	"powtoken/internal/ledger"
	"powtoken/internal/mining"
	"powtoken/internal/notify"
	"powtoken/internal/observability"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults); set values override the config file
	configPath := flag.String("config", os.Getenv("LEDGERD_CONFIG"), "YAML config file")
	addr := flag.String("addr", os.Getenv("LEDGERD_ADDR"), "HTTP listen address")
	backend := flag.String("backend", os.Getenv("LEDGERD_BACKEND"), "Storage backend: memory, bolt or postgres")
	boltPath := flag.String("bolt-path", os.Getenv("LEDGERD_BOLT_PATH"), "bbolt database file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the event journal")
	authMode := flag.String("auth", os.Getenv("LEDGERD_AUTH"), "Request auth: signature or header")
	logLevel := flag.String("log-level", os.Getenv("LOG_LEVEL"), "Log level: debug, info, warn, error")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	override(&cfg.Server.Addr, *addr)
	override(&cfg.Storage.Backend, *backend)
	override(&cfg.Storage.BoltPath, *boltPath)
	override(&cfg.Storage.PostgresDSN, *postgresDSN)
	override(&cfg.Storage.ClickhouseDSN, *clickhouseDSN)
	override(&cfg.Server.Auth, *authMode)
	override(&cfg.Log.Level, *logLevel)
	if *dev {
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// run wires the components and serves until ctx is cancelled by a signal.
func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *zap.Logger) error {
	stores, err := createStores(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer stores.cleanup()

	dir := accounts.NewDirectory(stores.ledger.Accounts, logger.Named("accounts"))
	if err := registerAccounts(ctx, dir, cfg.Ledger, logger); err != nil {
		return err
	}

	initial, err := cfg.InitialDifficulty()
	if err != nil {
		return err
	}
	miningCfg, err := cfg.MiningConfig()
	if err != nil {
		return err
	}

	hub := notify.NewHub(nil, logger)
	defer hub.Close()

	notifiers := notify.Multi{
		notify.NewJournal(cfg.Storage.Backend, stores.ledger.Events, logger),
		hub,
		notify.NewLog(logger),
	}
	if stores.analytics != nil {
		notifiers = append(notifiers, notify.NewJournal("clickhouse", stores.analytics, logger))
	}

	l := ledger.New(ledger.Options{
		Stores:            stores.ledger,
		Accounts:          dir,
		Authorizer:        auth.Authorizer{},
		Owner:             cfg.Ledger.Owner,
		InitialDifficulty: initial,
		Notifier:          notifiers,
		Logger:            logger,
	})
	miner := mining.NewEngine(l, miningCfg, logger)

	srv := api.New(api.Options{
		Ledger:   l,
		Miner:    miner,
		Accounts: dir,
		Hub:      hub,
		Verifier: auth.NewVerifier(dir, cfg.Server.MaxSkew),
		AuthMode: cfg.Server.Auth,
		Logger:   logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})
	defer close(done)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, initiating graceful shutdown", zap.Stringer("signal", sig))
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("backend", cfg.Storage.Backend),
			zap.String("auth", cfg.Server.Auth),
			zap.String("owner", cfg.Ledger.Owner.String()),
			zap.Int("initial_difficulty_bits", initial.LeadingZeroBits()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// registerAccounts makes sure the owner and every configured account exist.
// Accounts already present from a previous run are left untouched.
func registerAccounts(ctx context.Context, dir *accounts.Directory, cfg config.Ledger, logger *zap.Logger) error {
	names := map[domain.AccountName]string{cfg.Owner: cfg.Accounts[cfg.Owner]}
	for name, key := range cfg.Accounts {
		names[name] = key
	}

	for name, key := range names {
		_, err := dir.Register(ctx, name, key)
		if errors.Is(err, accounts.ErrExists) {
			logger.Debug("account already registered", zap.String("account", name.String()))
			continue
		}
		if err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
