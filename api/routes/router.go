package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/harvestlink-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/harvestlink-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/harvestlink-backend/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/harvestlink-backend/api/controllers/webhooks"
	"github.com/angelmondragon/harvestlink-backend/api/middleware"
	"github.com/angelmondragon/harvestlink-backend/internal/orders"
	"github.com/angelmondragon/harvestlink-backend/internal/payments"
	"github.com/angelmondragon/harvestlink-backend/pkg/auth/session"
	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/harvestlink-backend/pkg/redis"
)

// Deps are the handlers' collaborators. Idempotency and Limiter may be nil,
// which turns the matching middleware into a pass-through.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	Readiness      map[string]controllers.Pinger
	Revocations    session.RevocationChecker
	Idempotency    pkgredis.IdempotencyStore
	Limiter        middleware.RateLimitStore
	Orders         orders.Service
	Payments       payments.Service
	Notifications  controllers.NotificationStore
	GatewayWebhook webhookcontrollers.GatewayWebhookService
	Metrics        http.Handler
	HTTPMetrics    *metrics.HTTPMetrics
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.AccessLog(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	otpPolicy := middleware.NewRateLimitPolicy(
		"verify-otp",
		cfg.RateLimit.Window,
		cfg.RateLimit.OTPIPLimit,
		cfg.RateLimit.OTPActorLimit,
	)
	webhookPolicy := middleware.NewRateLimitPolicy(
		"gateway-webhook",
		cfg.RateLimit.Window,
		cfg.RateLimit.WebhookIPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Readiness, logg))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// The gateway signs its callbacks; there is no bearer token to check.
	r.With(middleware.RateLimit(webhookPolicy, deps.Limiter, logg)).
		Post("/api/v1/payments/webhook/gateway", webhookcontrollers.GatewayWebhook(deps.GatewayWebhook, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Revocations, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		buyerOnly := middleware.RequireRole(enums.ActorRoleBuyer, logg)
		farmerOnly := middleware.RequireRole(enums.ActorRoleFarmer, logg)

		r.Route("/orders", func(r chi.Router) {
			r.With(buyerOnly).Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/my-orders", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.With(buyerOnly, middleware.RateLimit(otpPolicy, deps.Limiter, logg)).
				Post("/{orderId}/verify-otp", ordercontrollers.VerifyOTP(deps.Orders, logg))
			r.With(farmerOnly).Patch("/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
			r.Put("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/status/{orderId}", paymentcontrollers.Status(deps.Payments, logg))

			r.Group(func(r chi.Router) {
				r.Use(buyerOnly)
				r.Post("/create-order", paymentcontrollers.CreateOrder(deps.Payments, logg))
				r.Post("/create-qr", paymentcontrollers.CreateQR(deps.Payments, logg))
				r.Post("/verify", paymentcontrollers.Verify(deps.Payments, logg))
				r.Post("/mark-paid/{orderId}", paymentcontrollers.MarkPaid(deps.Payments, cfg.GCS.MaxUploadMB, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(farmerOnly)
				r.Post("/cash-confirm/{orderId}", paymentcontrollers.ConfirmCash(deps.Payments, logg))
				r.Post("/confirm-upi/{orderId}", paymentcontrollers.ConfirmUPI(deps.Payments, logg))
				r.Post("/reject-upi/{orderId}", paymentcontrollers.RejectUPI(deps.Payments, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	return r
}
