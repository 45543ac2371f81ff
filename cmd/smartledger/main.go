package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"smartledger/internal/alerts"
	"smartledger/internal/amqp"
	"smartledger/internal/auth"
	"smartledger/internal/backend"
	"smartledger/internal/categories"
	"smartledger/internal/config"
	apphttp "smartledger/internal/http"
	applog "smartledger/internal/log"
	"smartledger/internal/toast"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(nil).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	var opts []categories.Option
	if result.Notifier != nil {
		opts = append(opts, categories.WithNotifier(result.Notifier))
	}
	store := categories.NewStore(result.KV, opts...)

	// Without a configured secret, sessions still work but do not survive a
	// restart.
	secret := cfg.SessionSecret
	if secret == "" {
		secret = ephemeralSecret()
		logger.Warn("SESSION_SECRET not set, using an ephemeral key")
	}
	sessions := auth.NewSessions(secret, cfg.SessionTTL)

	toasts := toast.NewQueue()

	var checker *alerts.Checker
	if result.Repository != nil {
		checker = alerts.NewChecker(result.Repository, store, toasts, cfg.AlertMultiplier)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Store:    store,
		Repo:     result.Repository,
		Sessions: sessions,
		Checker:  checker,
		Toasts:   toasts,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Apply change events published by other processes.
	if cfg.AMQPURL != "" {
		g.Go(func() error {
			amqp.ConsumeWithReconnect(ctx, cfg.AMQPURL, cfg.AMQPExchange, store.HandleRemoteChange)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func ephemeralSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(buf)
}
