// Package main is the entry point for the PromptCraft server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (a .env file if present, then the environment)
// 2. Create the logger
// 3. Build and start the server
//
// All actual logic lives in imported packages (internal/server,
// internal/handler, ...), which keeps it testable without running main.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sakif/promptcraft/internal/config"
	"github.com/sakif/promptcraft/internal/server"
)

func main() {
	// === 1. LOAD .env ===
	// Values already in the environment win over the file. A missing file is
	// normal in production, where the environment is set by the platform.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. SET UP LOGGING ===
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var logHandler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		logHandler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	// === 4. DATABASE DIRECTORY ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
