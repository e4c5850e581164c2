package config

import (
	"fmt"
	"os"
	"time"
)

const (
	ServiceName    = "order-service"
	ServiceVersion = "0.1.0"
)

const (
	// NotificationsTopic carries every domain event the core publishes.
	// The event name travels in the message headers so downstream
	// consumers (mailer, realtime gateway) route without extra topics.
	NotificationsTopic = "OrderNotifications"
	BatchTimeout       = 10 * time.Millisecond
	BatchSize          = 100

	// LowStockThreshold is the stock level below which a low-stock
	// notice is emitted after an order decrements a product.
	LowStockThreshold = 5

	// NotifyTimeout bounds each fire-and-forget notification publish.
	NotifyTimeout = 5 * time.Second
)

const (
	LogsPath      = "/otlp/v1/logs"   // Grafana Cloud OTLP path
	TracesPath    = "/otlp/v1/traces" // Grafana Cloud OTLP path
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

const DefaultHTTPAddr = ":8080"

type Config struct {
	HTTPAddr     string
	DatabasePath string
	KafkaBroker  string

	// WebhookSecret keys the HMAC over payment-provider webhooks. When
	// empty, webhook signatures are not enforced (development setups).
	WebhookSecret string

	OtelEndpoint   string
	OtelAuthHeader string
}

func LoadConfig() (*Config, error) {
	config := &Config{
		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		DatabasePath:   os.Getenv("DATABASE_PATH"),
		KafkaBroker:    os.Getenv("KAFKA_BROKER"),
		WebhookSecret:  os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
	}

	if config.DatabasePath == "" {
		return nil, fmt.Errorf("DATABASE_PATH environment variable is required")
	}
	if config.KafkaBroker == "" {
		return nil, fmt.Errorf("KAFKA_BROKER environment variable is required")
	}
	if config.HTTPAddr == "" {
		config.HTTPAddr = DefaultHTTPAddr
	}

	return config, nil
}
