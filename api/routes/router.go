package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshmartsg/freshmart-backend/api/controllers"
	"github.com/freshmartsg/freshmart-backend/api/middleware"
	authsvc "github.com/freshmartsg/freshmart-backend/internal/auth"
	"github.com/freshmartsg/freshmart-backend/internal/cart"
	"github.com/freshmartsg/freshmart-backend/internal/catalog"
	checkoutsvc "github.com/freshmartsg/freshmart-backend/internal/checkout"
	"github.com/freshmartsg/freshmart-backend/internal/orders"
	"github.com/freshmartsg/freshmart-backend/pkg/config"
	"github.com/freshmartsg/freshmart-backend/pkg/db"
	"github.com/freshmartsg/freshmart-backend/pkg/logger"
	"github.com/freshmartsg/freshmart-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions middleware.SessionChecker,
	authService authsvc.Service,
	catalogService catalog.Service,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	captureProofs *checkoutsvc.CaptureProofStore,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionCart(cfg.Cart.SessionTTL, cfg.App.IsProd()))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
			r.Post("/refresh", controllers.AuthRefresh(authService, cfg.JWT, logg))
			r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/logout", controllers.AuthLogout(authService, logg))
		})

		// storefront surface shared by guests and shoppers
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthOptional(cfg.JWT, sessions, logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ProductsList(catalogService, logg))
				r.Get("/{productId}", controllers.ProductsGet(catalogService, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartSnapshot(cartService, logg))
				r.Delete("/", controllers.CartClear(cartService, logg))
				r.Post("/items/{productId}", controllers.CartAddOne(cartService, logg))
				r.Post("/items/{productId}/increase", controllers.CartIncrease(cartService, logg))
				r.Post("/items/{productId}/decrease", controllers.CartDecrease(cartService, logg))
				r.Put("/items/{productId}", controllers.CartSetQuantity(cartService, logg))
				r.Delete("/items/{productId}", controllers.CartRemove(cartService, logg))
			})

			r.Post("/checkout", controllers.CheckoutPlace(checkoutService, logg))
			r.Post("/payments/capture", controllers.PaymentsCapture(captureProofs, logg))

			r.Get("/orders/{orderNumber}", controllers.OrdersReceipt(ordersService, logg))
			r.Post("/orders/{orderNumber}/confirm-payment", controllers.OrdersConfirmPayment(ordersService, logg))
		})

		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Get("/orders", controllers.OrdersHistory(ordersService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/low-stock", controllers.AdminProductsLowStock(catalogService, logg))
			r.Post("/", controllers.AdminProductCreate(catalogService, logg))
			r.Put("/{productId}", controllers.AdminProductUpdate(catalogService, logg))
			r.Delete("/{productId}", controllers.AdminProductDelete(catalogService, logg))
			r.Post("/{productId}/replenish", controllers.AdminProductReplenish(catalogService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrdersList(ordersService, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(ordersService, logg))
		})
	})

	return r
}
