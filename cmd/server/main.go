// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Scamscan API server
//
// Entry point for the scan service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to Redis (report queue + dedup) and the history store
//  3. Builds the analysis client and the URL, file, e-mail and text scanners
//  4. Serves the HTTP and WebSocket API
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/phishnchips/scamscan/internal/analysis"
	"github.com/phishnchips/scamscan/internal/config"
	"github.com/phishnchips/scamscan/internal/dedup"
	"github.com/phishnchips/scamscan/internal/history"
	"github.com/phishnchips/scamscan/internal/queue"
	"github.com/phishnchips/scamscan/internal/scanner"
	"github.com/phishnchips/scamscan/internal/server"
	"github.com/phishnchips/scamscan/internal/textscan"
	"github.com/phishnchips/scamscan/internal/verdict"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	slog.Info("starting scamscan API server")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"analysis_base_url", cfg.Analysis.BaseURL,
		"poll_attempts", cfg.Analysis.PollAttempts,
		"poll_interval", cfg.Analysis.PollInterval,
		"suspicious_ratio", cfg.SuspiciousRatio,
		"history_driver", cfg.HistoryDriver,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := server.Deps{
		Checks: make(map[string]func(context.Context) error),
	}

	// --- Connect to Redis ---
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		publisher := queue.NewPublisher(rdb, cfg.ReportsQueue)
		if err := publisher.Ping(ctx); err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to Redis", "reports_queue", cfg.ReportsQueue)

		deps.Reports = publisher
		deps.Dedup = dedup.NewFilter(rdb)
		deps.Checks["redis"] = publisher.Ping
	} else {
		slog.Warn("REDIS_URL not set, scam reports disabled")
	}

	// --- History Store ---
	switch cfg.HistoryDriver {
	case "postgres":
		pgPool, err := pgxpool.New(ctx, cfg.HistoryDSN)
		if err != nil {
			slog.Error("failed to create Postgres pool", "error", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		if err := pgPool.Ping(ctx); err != nil {
			slog.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to PostgreSQL")

		store, err := history.NewPostgres(ctx, pgPool)
		if err != nil {
			slog.Error("failed to initialise history store", "error", err)
			os.Exit(1)
		}
		deps.History = store
		deps.Checks["postgres"] = pgPool.Ping

	case "sqlite":
		path := cfg.HistoryDSN
		if path == "" {
			path = "scamscan.db"
		}
		store, err := history.OpenSQLite(ctx, path)
		if err != nil {
			slog.Error("failed to open history database", "path", path, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		deps.History = store
		deps.Checks["sqlite"] = store.Ping

	default:
		slog.Info("history store disabled")
	}

	// --- Analysis Client ---
	client := analysis.NewClient(analysis.NewHTTPClient(ctx, cfg.Analysis), analysis.OptionsFromConfig(cfg.Analysis))
	policy := verdict.NewPolicy(cfg.SuspiciousRatio)

	// --- Scanners ---
	var verifier scanner.Verifier
	if cfg.Verifier.APIKey != "" {
		verifier = scanner.NewEmailVerifier(nil, cfg.Verifier.BaseURL, cfg.Verifier.APIKey)
		slog.Info("e-mail verifier enabled", "base_url", cfg.Verifier.BaseURL)
	}

	urls := scanner.NewURLScanner(client, policy)
	emails := scanner.NewEmailScanner(client, policy, verifier)

	deps.URLs = urls
	deps.Emails = emails
	deps.Files = scanner.NewFileScanner(client, policy)
	deps.Text = textscan.New(urls, emails, textscan.Options{Concurrency: cfg.TextScanConcurrency})

	// --- API Server ---
	ready, stopped, err := server.Serve(ctx, cfg.Port, server.New(deps))
	if err != nil {
		slog.Error("failed to start API server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()
	<-stopped

	slog.Info("scamscan API server stopped")
}

func logLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
