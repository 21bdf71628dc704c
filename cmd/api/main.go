package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agriconnect/agriconnect-backend/api/routes"
	"github.com/agriconnect/agriconnect-backend/internal/delivery"
	"github.com/agriconnect/agriconnect-backend/internal/ledger"
	"github.com/agriconnect/agriconnect-backend/internal/listings"
	"github.com/agriconnect/agriconnect-backend/internal/offers"
	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/internal/payments"
	"github.com/agriconnect/agriconnect-backend/internal/users"
	"github.com/agriconnect/agriconnect-backend/pkg/config"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/geo"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/metrics"
	"github.com/agriconnect/agriconnect-backend/pkg/migrate"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
	"github.com/agriconnect/agriconnect-backend/pkg/razorpay"
	"github.com/agriconnect/agriconnect-backend/pkg/redis"
	"github.com/agriconnect/agriconnect-backend/pkg/verify"
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
		Level:       cfg.App.LogLevel,
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

	deps, err := buildDependencies(context.Background(), cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
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
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildDependencies(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	gatewayMetrics := metrics.NewGatewayMetrics(prometheus.DefaultRegisterer)
	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	gateway, err := razorpay.NewClient(ctx, cfg.Razorpay, logg, razorpay.WithMetrics(gatewayMetrics))
	if err != nil {
		return routes.Dependencies{}, err
	}
	verifier, err := verify.NewClient(cfg.Twilio, logg, verify.WithMetrics(gatewayMetrics))
	if err != nil {
		return routes.Dependencies{}, err
	}
	geocoder := geo.NewClient(cfg.Geocoder, logg, geo.WithCache(redisClient), geo.WithMetrics(gatewayMetrics))

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	listingSvc, err := listings.NewService(listings.NewRepository(dbClient.DB()), dbClient, emitter)
	if err != nil {
		return routes.Dependencies{}, err
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, emitter)
	if err != nil {
		return routes.Dependencies{}, err
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:       orders.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Outbox:     emitter,
		Inventory:  listingSvc,
		Wallet:     ledgerSvc,
		Verifier:   verifier,
		Cooldowns:  redisClient,
		Metrics:    orderMetrics,
		Logger:     logg,
		Orders:     cfg.Orders,
		Settlement: cfg.Settlement,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	offerSvc, err := offers.NewService(offers.ServiceParams{
		Repo:   offers.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: emitter,
		Stock:  listingSvc,
		Orders: orderSvc,
		Logger: logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	paymentSvc, err := payments.NewService(payments.NewRepository(dbClient.DB()), dbClient, gateway, orderSvc, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	deliverySvc, err := delivery.NewService(geocoder, cfg.Delivery)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		RateLimiter: redisClient,
		Gatherer:    prometheus.DefaultGatherer,
		Listings:    listingSvc,
		Offers:      offerSvc,
		Orders:      orderSvc,
		Payments:    paymentSvc,
		Delivery:    deliverySvc,
		Ledger:      ledgerSvc,
		Users:       users.NewService(users.NewRepository(dbClient.DB())),
	}, nil
}
