package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"orderservice/internal/domain"
	"orderservice/internal/platform/kafka"
	"orderservice/internal/platform/observability"
)

// Notifier publishes domain events to the notifications topic. Every
// publish is fire-and-forget on its own goroutine with its own timeout:
// a slow or unreachable broker can never fail or roll back the core
// operation that triggered the event. Failures are logged and dropped.
type Notifier struct {
	producer kafka.Producer
	logger   observability.Logger
	timeout  time.Duration

	wg sync.WaitGroup
}

// NewNotifier creates a notifier over the given producer.
func NewNotifier(producer kafka.Producer, logger observability.Logger, timeout time.Duration) *Notifier {
	return &Notifier{
		producer: producer,
		logger:   logger,
		timeout:  timeout,
	}
}

// OrderCreated announces a freshly committed order to the customer, the
// admin and every distinct vendor, and queues the confirmation email.
func (n *Notifier) OrderCreated(ctx context.Context, order *domain.Order) {
	event := orderEvent(order)
	n.emit(ctx, EventOrderCreated, order.ID, event)
	n.emit(ctx, EventEmailOrderConfirmation, order.ID, event)
}

// OrderShipped announces the ship transition and queues the shipped
// email.
func (n *Notifier) OrderShipped(ctx context.Context, order *domain.Order, shipment *domain.Shipment) {
	event := orderEvent(order)
	event.TrackingNumber = shipment.TrackingNumber
	n.emit(ctx, EventOrderShipped, order.ID, event)
	n.emit(ctx, EventEmailOrderShipped, order.ID, event)
}

// OrderDelivered announces the delivery transition and queues the
// delivered email.
func (n *Notifier) OrderDelivered(ctx context.Context, order *domain.Order, shipment *domain.Shipment) {
	event := orderEvent(order)
	if shipment != nil {
		event.TrackingNumber = shipment.TrackingNumber
	}
	n.emit(ctx, EventOrderDelivered, order.ID, event)
	n.emit(ctx, EventEmailOrderDelivered, order.ID, event)
}

// OrderCancelled announces the cancellation to the customer and every
// distinct vendor.
func (n *Notifier) OrderCancelled(ctx context.Context, order *domain.Order) {
	n.emit(ctx, EventOrderCancelled, order.ID, orderEvent(order))
}

// LowStock announces that a product's stock fell below the low-stock
// threshold during an order.
func (n *Notifier) LowStock(ctx context.Context, alert domain.LowStockAlert) {
	n.emit(ctx, EventLowStock, alert.ProductID, alert)
}

// Wait blocks until all in-flight publishes have finished. Called
// during shutdown so buffered events are not lost.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func orderEvent(order *domain.Order) *OrderEvent {
	return &OrderEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		VendorIDs:  order.VendorIDs(),
		Status:     string(order.Status),
		Total:      order.Total.String(),
	}
}

func (n *Notifier) emit(ctx context.Context, event, key string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("Failed to serialize notification",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafkago.Header{
			{Key: "event", Value: []byte(event)},
		},
	}

	// Detach from the request context so a finished request does not
	// cancel the publish, but keep its trace linkage.
	publishCtx := context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(publishCtx, n.timeout)
		defer cancel()

		if err := n.producer.WriteMessage(ctx, msg); err != nil {
			n.logger.Error("Failed to publish notification",
				zap.String("event", event),
				zap.String("key", key),
				zap.Error(err),
			)
			return
		}
		n.logger.Info("Notification published",
			zap.String("event", event),
			zap.String("key", key),
		)
	}()
}
