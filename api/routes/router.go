package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agriconnect/agriconnect-backend/api/controllers"
	"github.com/agriconnect/agriconnect-backend/api/middleware"
	"github.com/agriconnect/agriconnect-backend/internal/delivery"
	"github.com/agriconnect/agriconnect-backend/internal/ledger"
	"github.com/agriconnect/agriconnect-backend/internal/listings"
	"github.com/agriconnect/agriconnect-backend/internal/offers"
	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/internal/payments"
	"github.com/agriconnect/agriconnect-backend/internal/users"
	"github.com/agriconnect/agriconnect-backend/pkg/config"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/metrics"
	"github.com/agriconnect/agriconnect-backend/pkg/redis"
)

// Dependencies are the collaborators the HTTP surface is wired against.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	RateLimiter redis.RateLimiter
	Gatherer    prometheus.Gatherer

	Listings listings.Service
	Offers   offers.Service
	Orders   orders.Service
	Payments payments.Service
	Delivery delivery.Service
	Ledger   ledger.Service
	Users    users.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}, logg))
	})

	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	farmer := middleware.RequireRole(logg, enums.RoleFarmer)
	buyer := middleware.RequireRole(logg, enums.RoleBuyer)
	driver := middleware.RequireRole(logg, enums.RoleDriver)
	negotiator := middleware.RequireRole(logg, enums.RoleFarmer, enums.RoleBuyer)
	earner := middleware.RequireRole(logg, enums.RoleFarmer, enums.RoleDriver)
	otpGuard := middleware.RateLimit(deps.RateLimiter, "otp_verify", cfg.Orders.OTPVerifyLimit, cfg.Orders.OTPVerifyWindow,
		middleware.PerRouteParam("orderId"), logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/listings", controllers.ListingList(deps.Listings, logg))
		r.Get("/listings/{listingId}", controllers.ListingGet(deps.Listings, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.With(farmer).Post("/listings", controllers.ListingCreate(deps.Listings, logg))
			r.With(farmer).Patch("/listings/{listingId}", controllers.ListingUpdate(deps.Listings, logg))

			r.Route("/offers", func(r chi.Router) {
				r.With(buyer).Post("/", controllers.OfferCreate(deps.Offers, logg))
				r.With(buyer).Get("/mine", controllers.OfferListMine(deps.Offers, logg))
				r.With(farmer).Get("/incoming", controllers.OfferListIncoming(deps.Offers, logg))
				r.Route("/{offerId}", func(r chi.Router) {
					r.Use(negotiator)
					r.Get("/", controllers.OfferGet(deps.Offers, logg))
					r.Post("/counter", controllers.OfferCounter(deps.Offers, logg))
					r.Post("/accept", controllers.OfferAccept(deps.Offers, logg))
					r.Post("/reject", controllers.OfferReject(deps.Offers, logg))
					r.With(buyer).Delete("/", controllers.OfferDelete(deps.Offers, logg))
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(negotiator).Post("/from-offer/{offerId}", controllers.OrderFromOffer(deps.Orders, logg))
				r.With(negotiator).Get("/mine", controllers.OrderListMine(deps.Orders, logg))
				r.Route("/{orderId}", func(r chi.Router) {
					r.Get("/", controllers.OrderDetail(deps.Orders, logg))
					r.Get("/receipt", controllers.OrderReceipt(deps.Orders, logg))
					r.With(negotiator).Post("/cancel", controllers.OrderCancel(deps.Orders, logg))
					r.With(farmer).Post("/drivers", controllers.OrderAssignDrivers(deps.Orders, logg))
					r.With(driver, otpGuard).Post("/otp/verify", controllers.OrderVerifyOTP(deps.Orders, logg))
					r.With(driver).Post("/otp/resend", controllers.OrderResendOTP(deps.Orders, logg))
					r.With(farmer).Post("/release", controllers.OrderRelease(deps.Orders, logg))
				})
			})

			r.With(farmer).Get("/drivers", controllers.DriverDirectory(deps.Users, logg))

			r.Route("/driver/orders", func(r chi.Router) {
				r.Use(driver)
				r.Get("/", controllers.DriverDeliveries(deps.Orders, logg))
				r.Get("/available", controllers.DriverAvailable(deps.Orders, logg))
				r.Post("/{orderId}/accept", controllers.DriverAccept(deps.Orders, logg))
				r.Post("/{orderId}/decline", controllers.DriverDecline(deps.Orders, logg))
				r.Post("/{orderId}/complete", controllers.DriverComplete(deps.Orders, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Use(buyer)
				r.Post("/intents", controllers.PaymentIntentCreate(deps.Payments, logg))
				r.Post("/verify", controllers.PaymentVerify(deps.Payments, logg))
			})

			r.Get("/delivery/fee", controllers.DeliveryFee(deps.Delivery, logg))

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", controllers.WalletGet(deps.Ledger, logg))
				r.With(earner).Post("/withdraw", controllers.WalletWithdraw(deps.Ledger, logg))
				r.Get("/reconcile", controllers.WalletReconcile(deps.Ledger, logg))
			})

			r.Get("/users/me", controllers.UserMe(deps.Users, logg))
			r.Get("/users/{userId}", controllers.UserGet(deps.Users, logg))
		})
	})

	return r
}
