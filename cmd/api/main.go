package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-service/config"
	httpHandler "wallet-service/internal/adapter/http/handler"
	pgStorage "wallet-service/internal/adapter/storage/postgres"
	redisStorage "wallet-service/internal/adapter/storage/redis"
	"wallet-service/internal/core/ports"
	"wallet-service/internal/service"
	"wallet-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Service")

	if cfg.Auth.APIKey == "" {
		log.Fatal().Msg("auth.api_key must be configured")
	}

	ctx := context.Background()

	// Wire the storage backend selected by config.
	var (
		walletStore ports.WalletStore
		idemStore   ports.IdempotencyStore
		checkers    []ports.HealthChecker
		cleanup     func()
	)

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		cleanup = pool.Close
		log.Info().Msg("PostgreSQL connected")

		walletStore = pgStorage.NewWalletStore(pool)
		idemStore = pgStorage.NewIdempotencyStore(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))

	default: // config.DriverRedis
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		cleanup = func() { _ = rdb.Close() }
		log.Info().Msg("Redis connected")

		walletStore = redisStorage.NewWalletStore(rdb)
		idemStore = redisStorage.NewIdempotencyStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	}
	defer cleanup()

	// Initialize business services
	walletSvc := service.NewWalletService(walletStore, log)
	idemSvc := service.NewIdempotencyService(
		idemStore,
		cfg.Idempotency.PendingTTL,
		cfg.Idempotency.WaitInterval,
		cfg.Idempotency.MaxWait,
		log,
	)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		IdempotencySvc: idemSvc,
		APIKey:         cfg.Auth.APIKey,
		HealthCheckers: checkers,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
