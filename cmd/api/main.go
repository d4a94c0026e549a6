package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ITDevS919/marketplace-backend/api/routes"
	cartsvc "github.com/ITDevS919/marketplace-backend/internal/cart"
	checkoutsvc "github.com/ITDevS919/marketplace-backend/internal/checkout"
	commissionsvc "github.com/ITDevS919/marketplace-backend/internal/commission"
	ordersvc "github.com/ITDevS919/marketplace-backend/internal/orders"
	payoutsvc "github.com/ITDevS919/marketplace-backend/internal/payouts"
	promotionsvc "github.com/ITDevS919/marketplace-backend/internal/promotion"
	"github.com/ITDevS919/marketplace-backend/internal/retailers"
	rewardsvc "github.com/ITDevS919/marketplace-backend/internal/rewards"
	"github.com/ITDevS919/marketplace-backend/internal/settlement"
	"github.com/ITDevS919/marketplace-backend/pkg/config"
	"github.com/ITDevS919/marketplace-backend/pkg/currency"
	"github.com/ITDevS919/marketplace-backend/pkg/db"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
	"github.com/ITDevS919/marketplace-backend/pkg/metrics"
	"github.com/ITDevS919/marketplace-backend/pkg/migrate"
	"github.com/ITDevS919/marketplace-backend/pkg/payments"
	"github.com/ITDevS919/marketplace-backend/pkg/redis"
)

const webhookGuardTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	gorm := dbClient.DB()
	cartRepo := cartsvc.NewRepository(gorm)
	promoRepo := promotionsvc.NewRepository(gorm)
	rewardsLedger := rewardsvc.NewLedger(gorm)
	orderRepo := ordersvc.NewRepository(gorm)
	retailerRepo := retailers.NewRepository(gorm)
	commissionRepo := commissionsvc.NewRepository(gorm)
	payoutRepo := payoutsvc.NewRepository(gorm)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Tx:         dbClient,
		Promotions: promoRepo,
		Rewards:    rewardsLedger,
		Orders:     orderRepo,
		Retailers:  retailerRepo,
		Commission: commissionRepo,
		Sessions:   paymentsClient,
		Logger:     logg,
		RewardsCfg: cfg.Rewards,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	orderService, err := ordersvc.NewService(ordersvc.ServiceParams{
		Repo:   orderRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	payoutService, err := payoutsvc.NewService(payoutsvc.ServiceParams{
		Tx:        dbClient,
		Payouts:   payoutRepo,
		Retailers: retailerRepo,
		Rates:     currency.DefaultTable(),
		Transfers: paymentsClient,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Orders:     orderRepo,
		Retailers:  retailerRepo,
		Commission: commissionRepo,
		Metrics:    webhookMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	webhookGuard, err := settlement.NewIdempotencyGuard(redisClient, webhookGuardTTL, "payment-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Payments:       paymentsClient,
			Cart:           cartRepo,
			Checkout:       checkoutService,
			Orders:         orderService,
			Rewards:        rewardsLedger,
			Payouts:        payoutService,
			Commission:     commissionRepo,
			Settlement:     settlementService,
			WebhookGuard:   webhookGuard,
			WebhookMetrics: webhookMetrics,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
