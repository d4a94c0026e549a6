package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ITDevS919/marketplace-backend/api/controllers"
	webhookcontrollers "github.com/ITDevS919/marketplace-backend/api/controllers/webhooks"
	"github.com/ITDevS919/marketplace-backend/api/middleware"
	cartsvc "github.com/ITDevS919/marketplace-backend/internal/cart"
	checkoutsvc "github.com/ITDevS919/marketplace-backend/internal/checkout"
	commissionsvc "github.com/ITDevS919/marketplace-backend/internal/commission"
	ordersvc "github.com/ITDevS919/marketplace-backend/internal/orders"
	payoutsvc "github.com/ITDevS919/marketplace-backend/internal/payouts"
	rewardsvc "github.com/ITDevS919/marketplace-backend/internal/rewards"
	"github.com/ITDevS919/marketplace-backend/internal/settlement"
	"github.com/ITDevS919/marketplace-backend/pkg/config"
	"github.com/ITDevS919/marketplace-backend/pkg/db"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
	"github.com/ITDevS919/marketplace-backend/pkg/metrics"
	"github.com/ITDevS919/marketplace-backend/pkg/payments"
	"github.com/ITDevS919/marketplace-backend/pkg/redis"
)

// Deps carries everything the router wires into its handlers.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             *db.Client
	Redis          *redis.Client
	Payments       *payments.Client
	Cart           *cartsvc.Repository
	Checkout       *checkoutsvc.Service
	Orders         *ordersvc.Service
	Rewards        *rewardsvc.Ledger
	Payouts        *payoutsvc.Service
	Commission     *commissionsvc.Repository
	Settlement     *settlement.Service
	WebhookGuard   *settlement.IdempotencyGuard
	WebhookMetrics *metrics.WebhookMetrics
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(deps.Settlement, deps.Payments, deps.WebhookGuard, deps.WebhookMetrics, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, deps.DB, logg))
			r.Post("/", controllers.CartPut(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Delete("/{lineId}", controllers.CartRemove(deps.Cart, logg))
		})

		r.Post("/v1/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
		})

		r.Route("/v1/rewards", func(r chi.Router) {
			r.Get("/balance", controllers.RewardsBalance(deps.Rewards, logg))
			r.Get("/history", controllers.RewardsHistory(deps.Rewards, logg))
		})

		r.Route("/v1/retailer", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.MemberRoleRetailer.String(), logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.RetailerOrderList(deps.Orders, logg))
				r.Patch("/{orderId}/status", controllers.RetailerOrderStatusUpdate(deps.Orders, logg))
			})
			r.Route("/payouts", func(r chi.Router) {
				r.Get("/", controllers.PayoutList(deps.Payouts, logg))
				r.Post("/", controllers.PayoutRequest(deps.Payouts, logg))
				r.Get("/balance", controllers.PayoutBalance(deps.Payouts, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.MemberRoleAdmin.String(), logg))
		r.Route("/v1/commission", func(r chi.Router) {
			r.Get("/", controllers.AdminCommissionLatest(deps.Commission, logg))
			r.Post("/", controllers.AdminCommissionPublish(deps.Commission, logg))
		})
	})

	return r
}
