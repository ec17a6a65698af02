package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"sentiment_bot/internal/bot"
	"sentiment_bot/internal/cache"
	"sentiment_bot/internal/config"
	"sentiment_bot/internal/provider"
	"sentiment_bot/internal/scheduler"
	"sentiment_bot/internal/storage"
	"sentiment_bot/internal/updater"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	providers := provider.All(provider.Options{
		Timeout: cfg.ProviderTimeout,
		Tracer:  otel.Tracer("sentiment_bot/provider"),
		Log:     log,
	})
	providerCache := cache.New(providers, log)

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, providers, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	upd := updater.New(providerCache, store, b, log)
	upd.SetConcurrency(cfg.UpdateConcurrency)
	upd.SetTracer(otel.Tracer("sentiment_bot/updater"))

	plan := scheduler.NewPlan(cfg.ScheduleCron, cfg.ScheduleTimes, cfg.Timezone, log)
	sched := scheduler.New(plan, upd, log)
	b.Wire(upd, sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot", "providers", len(providers), "scheduler", sched.State().String())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	b.Run(ctx)

	// Let an in-flight scheduled cycle finish before the store is closed.
	wg.Wait()
	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
