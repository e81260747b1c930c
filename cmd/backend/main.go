package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"govrfp/internal/config"
	"govrfp/internal/db"
	"govrfp/internal/server"
)

const (
	sweepInterval    = 10 * time.Minute
	auditMaxFailures = 5
	auditCooldown    = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := server.NewLogger(cfg.Logging, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server_error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown_complete")
}

// run starts the HTTP server and blocks until ctx is cancelled or the
// server fails.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if cfg.Security.SecretKey == config.DefaultSecretKey {
		logger.Warn().Msg("SECRET_KEY is the development default; set it before deploying")
	}

	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	logger.Info().Str("backend", cfg.Storage.Backend).Str("location", store.Location()).Msg("storage_ready")

	audit, closeAudit, err := openAudit(cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeAudit() }()

	srv := server.New(server.Config{
		App:    cfg,
		Logger: logger,
		Store:  store,
		Audit:  audit,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.Server.Addr()).
			Str("env", cfg.Server.Environment).
			Bool("debug", cfg.Server.Debug).
			Msg("starting")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting_down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if disk, ok := store.(*server.DiskStore); ok {
		g.Go(func() error {
			// Nothing can still be writing a temp file older than twice the request timeout.
			disk.RunSweeper(gctx, server.SweepConfig{
				Interval: sweepInterval,
				MaxAge:   2 * cfg.Server.RequestTimeout,
			}, logger)
			return nil
		})
	}

	return g.Wait()
}

// openAudit connects the audit trail when databaseURL is a Postgres URL and
// applies migrations. Any other URL (the default is a local file-backed
// store) is not used by the service and yields a no-op audit log.
func openAudit(databaseURL string, logger zerolog.Logger) (server.AuditLog, func() error, error) {
	if !server.IsPostgresURL(databaseURL) {
		logger.Info().Msg("audit_disabled: DATABASE_URL is not a postgres url")
		return server.NopAudit{}, func() error { return nil }, nil
	}

	conn, err := server.OpenDB(databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect audit database: %w", err)
	}

	logger.Info().Msg("running_migrations")
	version, err := db.RunMigrations(conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("audit migrations: %w", err)
	}
	logger.Info().Uint("schema_version", version).Msg("migrations_complete")

	breaker := server.NewCircuitBreaker(auditMaxFailures, auditCooldown, logger.With().Str("component", "audit").Logger())
	return server.NewBreakerAudit(server.NewSQLAudit(conn), breaker), conn.Close, nil
}
