// Package main is the entry point for the PromptGenie API server.
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
	"github.com/pressly/goose/v3"

	"github.com/pkordes/promptgenie/internal/config"
	"github.com/pkordes/promptgenie/internal/handler"
	"github.com/pkordes/promptgenie/internal/middleware"
	"github.com/pkordes/promptgenie/internal/notify"
	"github.com/pkordes/promptgenie/internal/repo"
	"github.com/pkordes/promptgenie/internal/service"
	"github.com/pkordes/promptgenie/migrations"
)

// maxImportBodyBytes caps request bodies. Import documents are the largest
// payload the API accepts; 10 MiB covers thousands of prompts with history.
const maxImportBodyBytes = 10 << 20

func main() {
	// --- Config -----------------------------------------------------------
	cfg := config.Load()

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
	// The store is a single SQLite file; Open creates it on first run and
	// applies the pragmas (WAL, busy timeout, foreign keys) the repos rely on.
	sqlDB, err := repo.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Apply pending migrations before accepting traffic. A fresh file gets
	// the full schema; an existing one is brought up to date.
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, migrations.FS)
	if err != nil {
		slog.Error("failed to create migration provider", "error", err)
		os.Exit(1)
	}
	results, err := provider.Up(context.Background())
	if err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "path", cfg.DatabasePath, "migrations_applied", len(results))

	// Wrap the handle so transient busy/locked errors are retried with
	// backoff instead of surfacing to callers.
	handle := repo.NewRetryingDB(sqlDB)

	// --- Services ---------------------------------------------------------
	emitter := notify.NewLogEmitter(logger)

	promptRepo := repo.NewPromptRepo(handle)
	tagRepo := repo.NewTagRepo(handle)

	tagService := service.NewTagService(tagRepo, emitter, logger)
	promptService := service.NewPromptService(promptRepo, tagRepo, tagService, emitter, logger)
	exportService := service.NewExportService(promptRepo, tagRepo, logger)

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
	r.Use(middleware.NewMaxBodySizeHandler(maxImportBodyBytes))

	srv := handler.NewServer(promptService, tagService, exportService)
	r.Mount("/", srv.Routes())

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	httpSrv := &http.Server{
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
		slog.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
