package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurellebeauty/aurelle-backend/api/controllers"
	webhookcontrollers "github.com/aurellebeauty/aurelle-backend/api/controllers/webhooks"
	"github.com/aurellebeauty/aurelle-backend/api/middleware"
	"github.com/aurellebeauty/aurelle-backend/internal/invoices"
	"github.com/aurellebeauty/aurelle-backend/internal/orders"
	"github.com/aurellebeauty/aurelle-backend/internal/payments"
	"github.com/aurellebeauty/aurelle-backend/internal/shipping"
	razorpaywebhook "github.com/aurellebeauty/aurelle-backend/internal/webhooks/razorpay"
	"github.com/aurellebeauty/aurelle-backend/pkg/config"
	"github.com/aurellebeauty/aurelle-backend/pkg/db"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
	"github.com/aurellebeauty/aurelle-backend/pkg/pubsub"
	"github.com/aurellebeauty/aurelle-backend/pkg/razorpay"
	"github.com/aurellebeauty/aurelle-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubClient pubsub.Pinger,
	razorpayClient *razorpay.Client,
	ordersService orders.Service,
	paymentsService payments.Service,
	invoicesService invoices.Service,
	shippingService shipping.Service,
	webhookService *razorpaywebhook.Service,
	webhookGuard *razorpaywebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(),
		middleware.Logging(logg),
	)

	// A typed nil must not reach the interface-valued middlewares.
	var idemStore redis.IdempotencyStore
	var rateStore middleware.RateLimiterStore
	var redisP db.Pinger
	if redisClient != nil {
		idemStore = redisClient
		rateStore = redisClient
		redisP = redisClient
	}

	trackPolicy := middleware.NewRateLimitPolicy(
		"track",
		cfg.RateLimit.TrackWindow,
		cfg.RateLimit.TrackIPLimit,
	)
	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP, pubsubClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(webhookService, razorpayClient, webhookGuard, logg))
	})

	r.With(middleware.RateLimit(trackPolicy, rateStore, logg)).
		Get("/api/v1/shipping/track/{awb}", controllers.TrackShipment(shippingService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.With(middleware.RateLimit(checkoutPolicy, rateStore, logg)).
			Post("/checkout", controllers.Checkout(ordersService, paymentsService, logg))
		r.Post("/payments/verify", controllers.PaymentsVerify(paymentsService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Post("/{orderId}/invoice", controllers.OrderInvoiceSend(ordersService, invoicesService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Put("/{orderId}/status", controllers.AdminOrderStatusUpdate(ordersService, logg))
			r.Post("/{orderId}/shipment", controllers.AdminShipmentCreate(shippingService, logg))
		})
		r.Route("/v1/shipments", func(r chi.Router) {
			r.Post("/{shipmentId}/awb", controllers.AdminAssignAWB(shippingService, logg))
			r.Post("/{shipmentId}/label", controllers.AdminGenerateLabel(shippingService, logg))
			r.Post("/sync", controllers.AdminStatusSync(shippingService, logg))
		})
	})

	return r
}
