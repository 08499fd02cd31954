// Package main is the entry point for the blog API server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration (.env file and environment variables)
//  2. Create the logger
//  3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/blog-platform/internal/config"
	"github.com/sakif/blog-platform/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Values from .env fill in whatever the environment leaves unset.
	// See internal/config for every variable and its default.
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_FORMAT=json for log shippers, text for humans at a terminal.
	// LOG_LEVEL is one of debug, info, warn, error.
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)

	if cfg.JWTSecretGenerated {
		logger.Warn("JWT_SECRET not set, using a random secret; sessions end on restart")
	}
	if !cfg.GitHubEnabled() {
		logger.Info("GitHub login disabled (GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET unset)")
	}

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if cfg.DBDriver == "sqlite" && cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
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
