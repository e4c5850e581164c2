package app

import (
	"context"
	"fmt"
	"os"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"orderservice/internal/config"
	"orderservice/internal/inventory"
	"orderservice/internal/notify"
	"orderservice/internal/order"
	"orderservice/internal/payment"
	"orderservice/internal/platform/kafka"
	"orderservice/internal/platform/observability"
	"orderservice/internal/platform/storage"
	"orderservice/internal/shipment"
	"orderservice/internal/web"
)

// Container holds expensive-to-create singleton resources and wires the
// domain services onto them.
type Container struct {
	config            *config.Config
	logger            observability.Logger
	tracer            observability.Tracer
	store             *storage.Store
	messageProducer   kafka.Producer
	notifier          *notify.Notifier
	server            *web.Server
	otelLogShutdown   func(context.Context) error
	otelTraceShutdown func(context.Context) error
}

// NewContainer creates and initializes all infrastructure components
// and the domain services on top of them.
func NewContainer(ctx context.Context) (*Container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	container := &Container{
		config: cfg,
	}

	if err := container.setupLogger(); err != nil {
		return nil, err
	}

	if err := container.setupObservability(ctx); err != nil {
		return nil, err
	}

	if err := container.setupStorage(); err != nil {
		return nil, err
	}

	container.setupServices()
	return container, nil
}

// setupLogger initializes the base logger; setupObservability replaces
// it with the OTel-bridged one when an endpoint is configured.
func (c *Container) setupLogger() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}

	c.logger = logger
	return nil
}

// setupObservability configures OpenTelemetry logging and tracing when
// an OTLP endpoint is configured, then the Kafka producer (instrumented
// with whichever tracer provider is active).
func (c *Container) setupObservability(ctx context.Context) error {
	var tp trace.TracerProvider = otel.GetTracerProvider()

	if c.config.OtelEndpoint != "" {
		otelLogShutdown, err := observability.SetupLoggingSDK(ctx, c.config)
		if err != nil {
			c.logger.Error("Failed to setup OpenTelemetry logging", zap.Error(err))
		}
		c.otelLogShutdown = otelLogShutdown

		sdkTP, otelTraceShutdown, err := observability.SetupTracingSDK(ctx, c.config)
		if err != nil {
			c.logger.Error("Failed to setup OpenTelemetry tracing", zap.Error(err))
		}
		c.otelTraceShutdown = otelTraceShutdown
		if sdkTP != nil {
			tp = sdkTP
		}

		c.reinitializeLoggerWithOTel()
	}

	c.tracer = otel.Tracer(config.ServiceName)

	return c.setupKafkaWithTracer(tp)
}

// reinitializeLoggerWithOTel creates a new logger with OpenTelemetry integration
func (c *Container) reinitializeLoggerWithOTel() {
	logProvider := global.GetLoggerProvider()
	instrumentationScopeName := "order-service.manual"
	otelZapCore := otelzap.NewCore(instrumentationScopeName,
		otelzap.WithLoggerProvider(logProvider),
	)

	consoleEncoderConfig := zap.NewProductionEncoderConfig()
	consoleEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(consoleEncoderConfig),
		zapcore.Lock(os.Stdout),
		zap.InfoLevel,
	)

	finalCore := zapcore.NewTee(otelZapCore, consoleCore)
	logger := zap.New(finalCore,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", config.ServiceName)),
	)

	c.logger = logger
	c.logger.Info("Logger re-initialized with OpenTelemetry bridge")
}

// setupKafkaWithTracer initializes the notifications producer with
// OpenTelemetry instrumentation.
func (c *Container) setupKafkaWithTracer(tp trace.TracerProvider) error {
	baseWriter := &kafkago.Writer{
		Addr:         kafkago.TCP(c.config.KafkaBroker),
		Topic:        config.NotificationsTopic,
		Balancer:     &kafkago.LeastBytes{},
		BatchTimeout: config.BatchTimeout,
		BatchSize:    config.BatchSize,
	}

	writer, err := otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(config.NotificationsTopic),
				attribute.String("messaging.kafka.client_id", config.ServiceName),
			},
		),
	)
	if err != nil {
		return err
	}
	c.messageProducer = writer

	return nil
}

// setupStorage opens the SQLite store backing all four record
// collections.
func (c *Container) setupStorage() error {
	store, err := storage.Open(c.config.DatabasePath)
	if err != nil {
		return err
	}
	c.store = store
	c.logger.Info("Storage opened", zap.String("path", c.config.DatabasePath))
	return nil
}

// setupServices wires repositories, the ledger, the notifier, the
// domain services, and the HTTP server.
func (c *Container) setupServices() {
	c.notifier = notify.NewNotifier(c.messageProducer, c.logger, config.NotifyTimeout)

	orders := order.NewStore()
	payments := payment.NewStore()
	shipments := shipment.NewStore()
	ledger := inventory.NewLedger()

	orderService := order.NewService(c.store, orders, ledger, payments, shipments, c.notifier, c.logger, c.tracer)
	paymentService := payment.NewService(c.store, payments, orders, c.config.WebhookSecret, c.logger, c.tracer)
	shipmentService := shipment.NewService(c.store, shipments, orders)

	c.server = web.NewServer(orderService, paymentService, shipmentService, c.logger)
}

// Shutdown gracefully shuts down all infrastructure components
func (c *Container) Shutdown(ctx context.Context) {
	c.logger.Info("Shutting down infrastructure...")

	// Let in-flight notifications drain before closing the producer.
	if c.notifier != nil {
		c.notifier.Wait()
	}

	if c.messageProducer != nil {
		if err := c.messageProducer.Close(); err != nil {
			c.logger.Error("Failed to close message producer", zap.Error(err))
		}
	}

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("Failed to close storage", zap.Error(err))
		}
	}

	if c.otelTraceShutdown != nil {
		if err := c.otelTraceShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OTel tracing", zap.Error(err))
		}
	}

	if c.otelLogShutdown != nil {
		if err := c.otelLogShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OTel logging", zap.Error(err))
		}
	}

	if err := c.logger.Sync(); err != nil {
		// Can't log this error since logger might be closed
		fmt.Printf("Failed to sync logger: %v\n", err)
	}
}

// Getters for accessing infrastructure components
func (c *Container) Logger() observability.Logger { return c.logger }
func (c *Container) Tracer() observability.Tracer { return c.tracer }
func (c *Container) Server() *web.Server          { return c.server }
func (c *Container) Config() *config.Config       { return c.config }
func (c *Container) Producer() kafka.Producer     { return c.messageProducer }
