package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nyashahama/unitrade-notifications/internal/api"
	"github.com/nyashahama/unitrade-notifications/internal/config"
	"github.com/nyashahama/unitrade-notifications/internal/db"
	"github.com/nyashahama/unitrade-notifications/internal/email"
	"github.com/nyashahama/unitrade-notifications/internal/ledger"
	"github.com/nyashahama/unitrade-notifications/internal/metrics"
	"github.com/nyashahama/unitrade-notifications/internal/notify"
	"github.com/nyashahama/unitrade-notifications/internal/supabase"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"ledger", cfg.Ledger.Backend,
		"policy", cfg.Notify.MissingDependentPolicy,
	)

	policy, err := notify.ParsePolicy(cfg.Notify.MissingDependentPolicy)
	if err != nil {
		return err
	}

	// Root context cancelled by OS signal.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Row lookups ───────────────────────────────────────────────────────────
	// A direct connection when DATABASE_URL is set, PostgREST otherwise.
	var querier db.Querier
	if cfg.Supabase.DatabaseURL != "" {
		pool, err := openDB(cfg.Supabase.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		querier = db.New(pool)
		logger.Info("lookups: postgres")
	} else {
		querier = supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey)
		logger.Info("lookups: postgrest", "url", cfg.Supabase.URL)
	}

	// ── Email (SMTP) ──────────────────────────────────────────────────────────
	mailer := email.NewSMTPClient(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Secure:   cfg.SMTP.Secure,
		Username: cfg.SMTP.Email,
		Password: cfg.SMTP.Password,
		Timeout:  cfg.SMTP.Timeout,
	})

	// ── Ledger ────────────────────────────────────────────────────────────────
	led, closeLedger, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	defer closeLedger.Close()
	logger.Info("ledger ready", "backend", cfg.Ledger.Backend)

	// ── Metrics ───────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// ── Notifiers ─────────────────────────────────────────────────────────────
	deps := notify.Deps{
		Querier: querier,
		Mailer:  mailer,
		Ledger:  led,
		Metrics: m,
		Logger:  logger,
		SiteURL: cfg.Server.SiteURL,
		Policy:  policy,
	}
	notifiers := []notify.Notifier{
		notify.NewListingApproval(deps),
		notify.NewPurchaseReceipt(deps),
		notify.NewUserApproval(deps),
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		notifiers,
		m,
		api.Config{
			Env:            cfg.Server.Env,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			JWTSecret:      cfg.Supabase.JWTSecret,
			RequestTimeout: api.DefaultRequestTimeout,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: api.DefaultRequestTimeout + 15*time.Second, // outlives the handler timeout
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight sends time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool used for direct row lookups.
func openDB(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	// Verify the connection is reachable before proceeding.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openLedger builds the backend named by cfg.Backend. The returned closer
// is always non-nil.
func openLedger(ctx context.Context, cfg config.LedgerConfig) (ledger.Ledger, io.Closer, error) {
	switch cfg.Backend {
	case config.LedgerMemory:
		m := ledger.NewMemory(cfg.TTL)
		return m, m, nil

	case config.LedgerRedis:
		r, err := ledger.NewRedis(ctx, ledger.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil

	case config.LedgerPostgres, config.LedgerSQLite, config.LedgerMySQL:
		s, err := ledger.OpenSQL(ctx, ledger.Dialect(cfg.Backend), cfg.DSN, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}

	return ledger.Nop{}, nopCloser{}, nil
}
