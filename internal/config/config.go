package config

import (
	"os"
	"strconv"
)

type Config struct {
	HTTP_PORT string `env:"HTTP_PORT"`
	DB_STRING string `env:"DB_STRING"`

	// Website B (the PayPal proxy backend).
	PROXY_BASE_URL   string `env:"PROXY_BASE_URL"`
	PROXY_API_KEY    string `env:"PROXY_API_KEY"`
	PROXY_API_SECRET string `env:"PROXY_API_SECRET"`

	// Shared secret for checkout anti-forgery tokens.
	CHECKOUT_SECRET string `env:"CHECKOUT_SECRET"`

	// Last-resort shipping cost attached when nothing else resolves.
	// Deployment-specific, no compiled-in default.
	FALLBACK_SHIPPING_CENTS int64 `env:"FALLBACK_SHIPPING_CENTS"`

	// TEST_MODE enables the empty-cart placeholder item and billing
	// placeholder defaults. Never set in production.
	TEST_MODE bool `env:"TEST_MODE"`

	KAFKA_BROKERS           string `env:"KAFKA_BROKERS"`
	KAFKA_ORDERS_TOPIC      string `env:"KAFKA_ORDERS_TOPIC"`
	KAFKA_COMPLETIONS_TOPIC string `env:"KAFKA_COMPLETIONS_TOPIC"`
	KAFKA_GROUP_ID          string `env:"KAFKA_GROUP_ID"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		HTTP_PORT:               os.Getenv("HTTP_PORT"),
		DB_STRING:               os.Getenv("DB_STRING"),
		PROXY_BASE_URL:          os.Getenv("PROXY_BASE_URL"),
		PROXY_API_KEY:           os.Getenv("PROXY_API_KEY"),
		PROXY_API_SECRET:        os.Getenv("PROXY_API_SECRET"),
		CHECKOUT_SECRET:         os.Getenv("CHECKOUT_SECRET"),
		KAFKA_BROKERS:           os.Getenv("KAFKA_BROKERS"),
		KAFKA_ORDERS_TOPIC:      os.Getenv("KAFKA_ORDERS_TOPIC"),
		KAFKA_COMPLETIONS_TOPIC: os.Getenv("KAFKA_COMPLETIONS_TOPIC"),
		KAFKA_GROUP_ID:          os.Getenv("KAFKA_GROUP_ID"),
	}

	if cfg.HTTP_PORT == "" {
		cfg.HTTP_PORT = "8080"
	}
	if cfg.KAFKA_ORDERS_TOPIC == "" {
		cfg.KAFKA_ORDERS_TOPIC = "orders.lifecycle"
	}
	if cfg.KAFKA_GROUP_ID == "" {
		cfg.KAFKA_GROUP_ID = "paypal-bridge"
	}

	if v := os.Getenv("FALLBACK_SHIPPING_CENTS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		cfg.FALLBACK_SHIPPING_CENTS = n
	}
	if v := os.Getenv("TEST_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, err
		}
		cfg.TEST_MODE = b
	}

	return cfg, nil
}
