package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flip-earn/internal/auth"
	"flip-earn/internal/cache"
	"flip-earn/internal/config"
	"flip-earn/internal/httpserver"
	"flip-earn/internal/imagestore"
	"flip-earn/internal/logging"
	"flip-earn/internal/market"
	"flip-earn/internal/metrics"
	"flip-earn/internal/repo"
	"flip-earn/internal/usersync"
	"flip-earn/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting flip-earn", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	var store repo.Store
	if cfg.DatabaseURL != "" {
		store, err = repo.NewPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
	} else {
		store, err = repo.NewSQLite(ctx, cfg.SQLitePath, logger)
	}
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	if err := store.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	imageClient := imagestore.New(imagestore.Config{
		BaseURL: cfg.ImageStoreBaseURL,
		APIKey:  cfg.ImageStoreAPIKey,
		Folder:  cfg.ImageStoreFolder,
		Timeout: cfg.ImageStoreTimeout,
	}, logger, metricRegistry)

	service := market.New(store, imageClient, redisClient, metricRegistry, logger, market.Config{
		FreePlanListingLimit: cfg.FreePlanListingLimit,
		PublicCacheTTL:       cfg.PublicCacheTTL,
	})

	webhookHandler := usersync.NewWebhookHandler(logger, metricRegistry, cfg.WebhookSecret, service)

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, service, store,
		auth.NewJWTProvider(cfg.JWTSecret), httpserver.Handlers{
			UserWebhook: webhookHandler,
		}, cfg.PublicBasePath)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
