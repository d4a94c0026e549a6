package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	commissionsvc "github.com/ITDevS919/marketplace-backend/internal/commission"
	ordersvc "github.com/ITDevS919/marketplace-backend/internal/orders"
	"github.com/ITDevS919/marketplace-backend/internal/reconciliation"
	"github.com/ITDevS919/marketplace-backend/internal/retailers"
	"github.com/ITDevS919/marketplace-backend/internal/settlement"
	"github.com/ITDevS919/marketplace-backend/pkg/config"
	"github.com/ITDevS919/marketplace-backend/pkg/db"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
	"github.com/ITDevS919/marketplace-backend/pkg/metrics"
	"github.com/ITDevS919/marketplace-backend/pkg/payments"
	"github.com/ITDevS919/marketplace-backend/pkg/redis"
)

const lockKeyFormat = "reconciler:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconciler"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconciler",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paymentsClient, err := payments.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payments client", err)
		os.Exit(1)
	}

	gorm := dbClient.DB()
	orderRepo := ordersvc.NewRepository(gorm)

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Orders:     orderRepo,
		Retailers:  retailers.NewRepository(gorm),
		Commission: commissionsvc.NewRepository(gorm),
		Metrics:    metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	sweepJob, err := reconciliation.NewSettlementSweepJob(reconciliation.SettlementSweepParams{
		Orders:       orderRepo,
		Sessions:     paymentsClient,
		Settler:      settlementService,
		Logger:       logg,
		StaleAfter:   cfg.Reconciler.StaleAfter,
		BatchSize:    cfg.Reconciler.BatchSize,
		PollAttempts: cfg.Reconciler.PollAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement sweep job", err)
		os.Exit(1)
	}

	lock, err := reconciliation.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Reconciler.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation lock", err)
		os.Exit(1)
	}

	service, err := reconciliation.NewService(reconciliation.ServiceParams{
		Logger:   logg,
		Registry: reconciliation.NewRegistry(sweepJob),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reconciler.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting reconciliation worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconciliation worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconciliation worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
