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

	"github.com/giygas/leaflet-api/app"
	"github.com/giygas/leaflet-api/config"
	"github.com/giygas/leaflet-api/logging"
	"github.com/giygas/leaflet-api/server"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine, the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.InitLogger(logging.Options{
		Dir:            cfg.LogDir,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer func() {
		if err := logging.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
		}
	}()

	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"portal", cfg.PortalSearchURL,
		"max_browser_sessions", cfg.MaxBrowserSessions,
		"embedding_provider", cfg.EmbeddingProvider,
		"llm_configured", cfg.LLMConfigured(),
		"index_cache_ttl", cfg.IndexCacheTTL)

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		logging.Fatal("Failed to initialize pipelines", "error", err)
	}

	if err := application.Scheduler.Start(); err != nil {
		logging.Fatal("Failed to start scheduler", "error", err)
	}

	srv := server.NewServer(cfg, application.Handler())

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Server failed to start", "error", err)
		}
	}()

	// Block until a signal is received
	sig := <-quit
	logging.Info("Received shutdown signal", "signal", sig.String())

	application.Scheduler.Stop()

	// Long enough for an in-flight portal fetch to finish its capture
	shutdownCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", "error", err)
	}
}
