package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/storebridge/paypal-bridge/internal/application"
	"github.com/storebridge/paypal-bridge/internal/config"
	"github.com/storebridge/paypal-bridge/internal/kafka"
	"github.com/storebridge/paypal-bridge/internal/logger"
	"github.com/storebridge/paypal-bridge/internal/migrate"
	"github.com/storebridge/paypal-bridge/internal/nonce"
	"github.com/storebridge/paypal-bridge/internal/presentation"
	"github.com/storebridge/paypal-bridge/internal/proxy"
	"github.com/storebridge/paypal-bridge/internal/repository"
)

func main() {
	logger.Init()
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warn("config load failed", "err", err)
		os.Exit(1)
	}

	if cfg.CHECKOUT_SECRET == "" {
		logger.Warn("CHECKOUT_SECRET is required")
		os.Exit(1)
	}
	// Mirrors the install-time secret generation of the original plugin:
	// generated once, then persisted by the deployment.
	if cfg.PROXY_API_SECRET == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			logger.Warn("secret generation failed", "err", err)
			os.Exit(1)
		}
		cfg.PROXY_API_SECRET = hex.EncodeToString(buf)
		logger.Info("generated proxy api secret, persist it via PROXY_API_SECRET", "secret", cfg.PROXY_API_SECRET)
	}

	// DB pool
	pool, err := pgxpool.New(context.Background(), cfg.DB_STRING)
	if err != nil {
		logger.Warn("pgxpool new failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	pingBackoff := retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(context.Background(), pingBackoff, func(ctx context.Context) error {
		return retry.RetryableError(pool.Ping(ctx))
	})
	if err != nil {
		logger.Warn("db ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("db connected")

	if err := migrate.Up(cfg.DB_STRING); err != nil {
		logger.Warn("migrations failed", "err", err)
		os.Exit(1)
	}

	// Wiring
	repo := repository.NewOrderRepository(pool)
	mappings := repository.NewProductMappingRepository(pool)
	tokens := nonce.New(cfg.CHECKOUT_SECRET)
	notifier := proxy.NewClient(cfg.PROXY_BASE_URL, cfg.PROXY_API_KEY)

	var events application.Publisher
	var prod *kafka.Producer
	if cfg.KAFKA_BROKERS != "" {
		prod = kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_ORDERS_TOPIC)
		defer prod.Close()
		events = prod
	}

	materializer := application.NewMaterializer(repo, mappings, notifier, events, tokens, cfg.TEST_MODE)
	finalizer := application.NewFinalizer(repo, events, tokens, cfg.FALLBACK_SHIPPING_CENTS)
	query := application.NewOrderQuery(repo)

	// Redundant completion channel from the payment backend.
	if cfg.KAFKA_BROKERS != "" && cfg.KAFKA_COMPLETIONS_TOPIC != "" {
		_, _ = kafka.StartConsumer(
			context.Background(),
			finalizer,
			tokens,
			kafka.ConsumerConfig{
				Brokers: cfg.KAFKA_BROKERS,
				Topic:   cfg.KAFKA_COMPLETIONS_TOPIC,
				GroupID: cfg.KAFKA_GROUP_ID,
			},
		)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h := presentation.NewCheckoutHandler(materializer, finalizer, query)
	h.Register(r)

	addr := ":" + cfg.HTTP_PORT
	logger.Info("starting http", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Warn("http server crashed", "err", err)
		os.Exit(1)
	}
}
