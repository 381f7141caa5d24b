package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freshmartsg/freshmart-backend/api/routes"
	"github.com/freshmartsg/freshmart-backend/internal/auth"
	"github.com/freshmartsg/freshmart-backend/internal/cart"
	"github.com/freshmartsg/freshmart-backend/internal/catalog"
	"github.com/freshmartsg/freshmart-backend/internal/checkout"
	"github.com/freshmartsg/freshmart-backend/internal/orders"
	"github.com/freshmartsg/freshmart-backend/internal/users"
	"github.com/freshmartsg/freshmart-backend/pkg/auth/session"
	"github.com/freshmartsg/freshmart-backend/pkg/config"
	"github.com/freshmartsg/freshmart-backend/pkg/db"
	"github.com/freshmartsg/freshmart-backend/pkg/logger"
	"github.com/freshmartsg/freshmart-backend/pkg/metrics"
	"github.com/freshmartsg/freshmart-backend/pkg/migrate"
	"github.com/freshmartsg/freshmart-backend/pkg/redis"
)

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	sessionCarts, err := cart.NewSessionStore(redisClient, cfg.Cart.SessionTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create session cart store", err)
		os.Exit(1)
	}
	cartService, err := cart.NewService(catalogRepo, sessionCarts, cart.NewUserStore(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	captureProofs, err := checkout.NewCaptureProofStore(redisClient, cfg.Checkout.CaptureProofTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create capture proof store", err)
		os.Exit(1)
	}
	receipts, err := checkout.NewReceiptStore(redisClient, cfg.Checkout.ReceiptTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create receipt store", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo, receipts, cfg.Checkout.GuestClaimWindow, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	fees, err := cfg.Checkout.FeeSchedule()
	if err != nil {
		logg.Error(context.Background(), "failed to parse delivery fee schedule", err)
		os.Exit(1)
	}
	checkoutService, err := checkout.NewService(
		cartService,
		catalogRepo,
		ordersRepo,
		dbClient,
		captureProofs,
		receipts,
		fees,
		cfg.Checkout.OrderNumberRetries,
		metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(
		users.NewRepository(dbClient.DB()),
		cartService,
		ordersService,
		sessionManager,
		cfg.JWT,
		cfg.Password,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			catalogService,
			cartService,
			checkoutService,
			ordersService,
			captureProofs,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
