package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kayode-ade/central-ledger/internal/api"
	"github.com/kayode-ade/central-ledger/internal/api/middleware"
	"github.com/kayode-ade/central-ledger/internal/config"
	"github.com/kayode-ade/central-ledger/internal/db"
	"github.com/kayode-ade/central-ledger/internal/events"
	"github.com/kayode-ade/central-ledger/internal/lock"
	"github.com/kayode-ade/central-ledger/internal/observability"
	"github.com/kayode-ade/central-ledger/internal/repository"
	"github.com/kayode-ade/central-ledger/internal/service"
	"github.com/kayode-ade/central-ledger/internal/worker"
)

// Run bootstraps the HTTP server and the timeout sweeper, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL, "migrations"); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, logger)
	}
	defer publisher.Close()

	locks := lock.NewRedisManager(cfg.LockAcquireTimeout, redisClient)

	store := repository.NewStore(pool)
	positions := service.NewPositionEngine()
	settlementSvc := service.NewSettlementService(store, positions, logger)
	participantSvc := service.NewParticipantService(store, settlementSvc)
	transferSvc := service.NewTransferService(store, positions, publisher, logger)
	fxTransferSvc := service.NewFxTransferService(store, positions, publisher, logger)
	timeoutSvc := service.NewTimeoutService(store, transferSvc, fxTransferSvc, locks, cfg.SweepLockTTL, publisher, logger)

	sweeper := worker.NewTimeoutSweeper(timeoutSvc, logger).WithPollInterval(cfg.SweepInterval)
	stopSweeper := sweeper.Run(ctx)
	logger.Info("timeout sweeper started", zap.Duration("interval", cfg.SweepInterval))

	router := api.NewRouter(cfg, logger, pool, redisClient, participantSvc, transferSvc, fxTransferSvc, settlementSvc)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping timeout sweeper")
	stopSweeper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
