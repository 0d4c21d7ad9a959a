package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/revnorm/internal/api"
	"github.com/gyaneshwarpardhi/revnorm/internal/config"
	"github.com/gyaneshwarpardhi/revnorm/internal/dispatch"
	"github.com/gyaneshwarpardhi/revnorm/internal/engine"
	"github.com/gyaneshwarpardhi/revnorm/internal/fx"
	"github.com/gyaneshwarpardhi/revnorm/internal/normalizer"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/revnorm.yaml", "Path to YAML config")
	envPath := flag.String("env-file", ".env", "Optional dotenv file loaded before the config")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	if err := config.LoadDotEnv(*envPath); err != nil {
		slog.Error("failed to load env file", "err", err)
		os.Exit(1)
	}
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	setLevel(level, cfg.LogLevel)

	// ── Rate provider ────────────────────────────────────────────────────────
	// Endpoint, timeout and cache TTL are fixed at startup.
	var rates fx.RateProvider = fx.NewClient(cfg.FX.Endpoint, time.Duration(cfg.FX.TimeoutMs)*time.Millisecond)
	if cfg.FX.CacheTTLMs > 0 {
		slog.Warn("FX rate cache enabled: applied rates may be older than fx_as_of", "ttl_ms", cfg.FX.CacheTTLMs)
	}
	rates = fx.NewCachedProvider(rates, time.Duration(cfg.FX.CacheTTLMs)*time.Millisecond)

	// ── Engine ────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.New(ctx, normalizer.New(rates), dispatch.DefaultRegistry(), cfg)
	if err != nil {
		slog.Error("failed to start engine", "err", err)
		os.Exit(1)
	}
	slog.Info("engine started", "mode", eng.Mode(), "workers", cfg.Engine.Workers)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		if err := eng.Apply(newCfg); err != nil {
			slog.Warn("hot-reload skipped: apply failed", "err", err)
			return
		}
		setLevel(level, newCfg.LogLevel)
		slog.Info("config hot-reloaded", "mode", eng.Mode())
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(eng, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	eng.Shutdown()
	cancel()
	slog.Info("goodbye")
}

func setLevel(v *slog.LevelVar, name string) {
	switch strings.ToLower(name) {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
