package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartledger/internal/alerts"
	"smartledger/internal/amqp"
	"smartledger/internal/categories"
	"smartledger/internal/config"
	applog "smartledger/internal/log"
	"smartledger/internal/storage"
	"smartledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting smartledger-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The worker reads the shared category list for budgets but never writes
	// it, so it needs no notifier.
	store := categories.NewStore(repo)
	checker := alerts.NewChecker(repo, store, nil, cfg.AlertMultiplier)

	watcherCfg := worker.DefaultBudgetWatcherConfig()
	watcherCfg.CheckInterval = cfg.AlertInterval
	watcher := worker.NewBudgetWatcher(repo, checker, watcherCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := watcher.Start(ctx); err != nil {
		logger.Error("Failed to start budget watcher", "error", err)
		os.Exit(1)
	}

	// Category changes from other processes only matter here as a signal to
	// re-read budgets, which happens on every check anyway, so the consumer
	// just keeps the store's remote handling exercised.
	if cfg.AMQPURL != "" {
		go amqp.ConsumeWithReconnect(ctx, cfg.AMQPURL, cfg.AMQPExchange, store.HandleRemoteChange)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := watcher.Stop(shutdownCtx); err != nil {
		logger.Error("Budget watcher shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
