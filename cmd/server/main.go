// Package main is the entry point for the Red Networking front-end server.
//
// main reads configuration, builds every dependency once and starts the
// server. All logic lives in internal/.
package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apiclient"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/config"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/metrics"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/redapi"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/server"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/service"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/session"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/storage/sqlite"
)

func main() {
	// === 1. CONFIGURATION ===
	// .env, then the optional YAML file, then the environment.
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	level, _ := cfg.SlogLevel() // already validated by Load
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	logger.Info("configuration loaded",
		slog.String("api_url", cfg.APIURL),
		slog.String("db_path", cfg.DBPath),
		slog.Duration("http_timeout", cfg.HTTPTimeout),
	)

	// === 3. SESSION STORAGE ===
	if dbDir := filepath.Dir(cfg.DBPath); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open session database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := session.New(db, logger)
	restored := store.Restore(context.Background())
	logger.Info("session restored", slog.Bool("authenticated", restored.IsAuthenticated))

	// === 4. METRICS ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewAPIRecorder(reg)

	// === 5. BACKEND CLIENT ===
	api, err := apiclient.New(cfg.APIURL, logger,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		apiclient.WithTokenSource(store),
		apiclient.WithRecorder(recorder),
	)
	if err != nil {
		logger.Error("failed to create API client", slog.String("error", err.Error()))
		if cerr := db.Close(); cerr != nil {
			logger.Error("closing session database failed", slog.String("error", cerr.Error()))
		}
		os.Exit(1)
	}
	red := redapi.New(api, store, logger)

	// === 6. SERVICES AND SERVER ===
	catalog := service.NewCatalogService(red, store, service.CatalogOptions{
		PageSize:        cfg.PageSize,
		MaxVisiblePages: cfg.MaxVisiblePages,
	}, logger)
	accounts := service.NewAccountService(red, store, logger)

	srv := server.New(server.Config{Port: cfg.Port}, server.Deps{
		Accounts: accounts,
		Catalog:  catalog,
		Metrics:  reg,
		Closers: []io.Closer{
			db,
			server.CloserFunc(func() error { catalog.Close(); return nil }),
		},
	}, logger)

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
