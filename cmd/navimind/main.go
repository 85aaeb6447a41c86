// Navimind orchestrator server — the stateful brain behind the browser
// extension: session engines, LLM planning, and the HTTP boundary.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/navimind/navimind/pkg/api"
	"github.com/navimind/navimind/pkg/cleanup"
	"github.com/navimind/navimind/pkg/config"
	"github.com/navimind/navimind/pkg/database"
	"github.com/navimind/navimind/pkg/session"
	"github.com/navimind/navimind/pkg/storage"
	"github.com/navimind/navimind/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.LoadServerConfig()
	slog.Info("Starting Navimind",
		"version", version.Full(),
		"http_port", cfg.HTTPPort,
		"default_provider", cfg.DefaultProvider)

	ctx := context.Background()

	// Store selection: Postgres when DATABASE_URL is set, in-memory
	// otherwise.
	var store storage.Store
	var dbClient *database.Client
	if cfg.DatabaseURL != "" {
		var err error
		dbClient, err = database.NewClient(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		store = database.NewPGStore(dbClient)
		slog.Info("Connected to PostgreSQL database")
	} else {
		store = storage.NewMemoryStore()
		slog.Warn("No DATABASE_URL configured, sessions will not survive a restart")
	}

	mgr := session.NewManager(store, cfg, logger)
	defer mgr.Close()

	retention := cleanup.NewService(store, cleanup.DefaultOptions(), logger)
	retention.Start(ctx)
	defer retention.Stop()

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.NewServer(mgr, dbClient, logger).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
