// Package main is the entry point for the school transit API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/schooltransit/backend/internal/config"
	"github.com/schooltransit/backend/internal/handler"
	"github.com/schooltransit/backend/internal/middleware"
	"github.com/schooltransit/backend/internal/push"
	"github.com/schooltransit/backend/internal/repo"
	"github.com/schooltransit/backend/internal/service"
	"github.com/schooltransit/backend/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// log/slog is the stdlib structured logger introduced in Go 1.21.
	// JSON handler writes machine-readable output suitable for log aggregators.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	// --- Migrations -------------------------------------------------------
	// Apply any pending migrations on startup. goose needs a *sql.DB, which
	// the pgx stdlib adapter derives from the existing pool config.
	if err := runMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	// --- Push delivery ----------------------------------------------------
	// Notifications are always persisted; push delivery on top of that is
	// optional and controlled by PUSH_GATEWAY_URL.
	var sender push.Sender = push.NopSender{}
	if cfg.PushGatewayURL != "" {
		sender = push.NewHTTPSender(cfg.PushGatewayURL, cfg.PushAPIKey)
	} else {
		slog.Warn("PUSH_GATEWAY_URL not set; push delivery disabled")
	}
	dispatcher := push.NewDispatcher(sender, cfg.PushWorkers, 256, logger)

	// --- Services ---------------------------------------------------------
	store := repo.NewStore(pool)
	notifier := service.NewNotifier(dispatcher, logger)
	tripService := service.NewTripService(store, notifier, logger)
	notificationService := service.NewNotificationService(store, notifier, dispatcher, logger)

	// --- Notification retention ------------------------------------------
	// Old stored notifications are swept periodically so the table does not
	// grow without bound. Push delivery state is unaffected.
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go runRetentionJanitor(janitorCtx, notificationService,
		time.Duration(cfg.NotificationRetentionDays)*24*time.Hour)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer.
	// RequestID generates a unique trace ID per request.
	// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a proxy).
	// SlogLogger writes one structured JSON log line per request.
	// Recoverer catches panics and returns HTTP 500 instead of crashing.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	server := handler.NewServer(tripService, notificationService, dispatcher.Stats)
	auth := middleware.NewAuthenticator([]byte(cfg.JWTSecret))
	r.Mount("/", server.Routes(auth))

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")
	stopJanitor()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	// Drain queued push deliveries before exiting.
	if err := dispatcher.Close(ctx); err != nil {
		slog.Warn("push dispatcher drain incomplete", "error", err)
	}
	slog.Info("server stopped")
}

// runMigrations applies all pending goose migrations from the embedded FS.
func runMigrations(dsn string) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return err
	}
	db := stdlib.OpenDB(*cfg.ConnConfig)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	results, err := provider.Up(context.Background())
	if err != nil {
		return err
	}
	if len(results) > 0 {
		slog.Info("migrations applied", "count", len(results))
	}
	return nil
}

// runRetentionJanitor deletes stored notifications older than retention on a
// fixed interval until ctx is cancelled. An initial sweep runs immediately.
func runRetentionJanitor(ctx context.Context, svc *service.NotificationService, retention time.Duration) {
	const interval = 12 * time.Hour

	sweep := func() {
		n, err := svc.CleanupOlderThan(ctx, retention)
		if err != nil {
			slog.Error("notification cleanup failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("notification cleanup", "deleted", n)
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
