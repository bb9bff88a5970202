package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	sentrygo "github.com/getsentry/sentry-go"

	"github.com/bandsync/backend/internal/config"
	"github.com/bandsync/backend/internal/database"
	"github.com/bandsync/backend/internal/db"
	"github.com/bandsync/backend/internal/logging"
	"github.com/bandsync/backend/internal/realtime"
	"github.com/bandsync/backend/internal/router"
	"github.com/bandsync/backend/internal/sentry"
	"github.com/bandsync/backend/internal/songs"
)

func main() {
	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	// Load configuration
	cfg := config.Load()

	// Error reporting (no-op when no DSN configured)
	if cfg.SentryDSN != "" {
		err := sentrygo.Init(sentrygo.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			BeforeSend:  sentry.ScrubEvent,
		})
		if err != nil {
			slog.Error("failed to initialize sentry", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sentrygo.Flush(2 * time.Second)
	}

	// Initialize database
	sqlDB, err := database.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(sqlDB); err != nil {
		slog.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize queries
	queries := db.New(sqlDB)

	// Load the song catalog
	catalog, err := songs.Load(cfg.SongCatalogPath)
	if err != nil {
		slog.Error("failed to load song catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Realtime hub
	hub := realtime.NewHub()

	// Create router
	r := router.New(cfg, queries, catalog, hub)

	// Start server
	addr := ":" + cfg.Port
	slog.Info("starting server", slog.String("addr", addr))

	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
