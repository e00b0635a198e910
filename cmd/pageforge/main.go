// Command pageforge runs the capture-to-codegen coordinator: an HTTP
// service that receives chunked webpage snapshots from a browser capture
// script, reassembles them into per-session workspaces, and derives style
// tokens and component classifications on finish.
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

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"pageforge/assets"
	"pageforge/dbopen"
	"pageforge/observability"
	"pageforge/server"
	"pageforge/session"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	godotenv.Load()

	logger := newLogger(env("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	cfgPath := env("PAGEFORGE_CONFIG", "pageforge.yaml")
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := loadConfig(cfgPath, logger)
	if err != nil {
		logger.Error("config load failed", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		logger.Error("database open failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := observability.Init(db); err != nil {
		logger.Error("observability schema failed", "error", err)
		os.Exit(1)
	}
	events := observability.NewEventLogger(db)
	metrics := observability.NewMetricsRecorder(db)

	registry, err := session.NewRegistry(db)
	if err != nil {
		logger.Error("session registry failed", "error", err)
		os.Exit(1)
	}

	resolver := assets.NewResolver(
		assets.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.AssetTimeoutSec) * time.Second}),
		assets.WithMaxBytes(cfg.MaxAssetBytes()),
		assets.WithLogger(logger))

	hub := session.NewHub(logger)
	orch, err := session.NewOrchestrator(cfg.DataDir, registry, hub,
		session.WithEventLogger(events),
		session.WithMetrics(metrics),
		session.WithAssetResolver(resolver),
		session.WithClosedCacheSize(cfg.ClosedCacheSize),
		session.WithLogger(logger))
	if err != nil {
		logger.Error("orchestrator init failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(cfg, orch, server.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("pageforge listening", "addr", cfg.Listen, "dataDir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("orchestrator shutdown incomplete", "error", err)
	}
	logger.Info("bye")
}

// loadConfig falls back to defaults when the file is absent, so a bare
// `pageforge` works out of the box.
func loadConfig(path string, logger *slog.Logger) (*server.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("config file not found, using defaults", "path", path)
		cfg := server.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return server.LoadConfig(path)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
