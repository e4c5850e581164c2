// Package testutil provides shared fixtures for service-level tests:
// a file-backed store under the test's temp dir, seeded catalog rows,
// fully wired services, and a recording notifier.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"orderservice/internal/domain"
	"orderservice/internal/inventory"
	"orderservice/internal/order"
	"orderservice/internal/payment"
	"orderservice/internal/platform/storage"
	"orderservice/internal/shipment"
)

// NewStore opens a fresh SQLite store under the test's temp dir.
func NewStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// SeedProduct inserts an active product and returns it.
func SeedProduct(t *testing.T, store *storage.Store, vendorID, name, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:       uuid.NewString(),
		VendorID: vendorID,
		Name:     name,
		Price:    mustDecimal(t, price),
		Stock:    stock,
		Status:   domain.ProductActive,
	}
	require.NoError(t, inventory.NewProductStore().Create(context.Background(), store.DB(), p))
	return p
}

// ProductStock reads a product's current stock directly.
func ProductStock(t *testing.T, store *storage.Store, productID string) int {
	t.Helper()
	p, err := inventory.NewProductStore().GetByID(context.Background(), store.DB(), productID)
	require.NoError(t, err)
	return p.Stock
}

// Services wires the full domain on top of store, with notifications
// captured by the returned FakeNotifier.
func Services(t *testing.T, store *storage.Store, webhookSecret string) (*order.Service, *payment.Service, *shipment.Service, *FakeNotifier) {
	t.Helper()

	logger := zap.NewNop()
	tracer := otel.Tracer("test")
	notifier := &FakeNotifier{}

	orders := order.NewStore()
	payments := payment.NewStore()
	shipments := shipment.NewStore()

	orderService := order.NewService(store, orders, inventory.NewLedger(), payments, shipments, notifier, logger, tracer)
	paymentService := payment.NewService(store, payments, orders, webhookSecret, logger, tracer)
	shipmentService := shipment.NewService(store, shipments, orders)
	return orderService, paymentService, shipmentService, notifier
}

// FakeNotifier records emitted events instead of publishing them.
type FakeNotifier struct {
	mu     sync.Mutex
	Events []string
	Alerts []domain.LowStockAlert
}

func (f *FakeNotifier) OrderCreated(ctx context.Context, order *domain.Order) {
	f.record("order:created")
}

func (f *FakeNotifier) OrderShipped(ctx context.Context, order *domain.Order, shipment *domain.Shipment) {
	f.record("order:shipped")
}

func (f *FakeNotifier) OrderDelivered(ctx context.Context, order *domain.Order, shipment *domain.Shipment) {
	f.record("order:delivered")
}

func (f *FakeNotifier) OrderCancelled(ctx context.Context, order *domain.Order) {
	f.record("order:cancelled")
}

func (f *FakeNotifier) LowStock(ctx context.Context, alert domain.LowStockAlert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, "product:low_stock")
	f.Alerts = append(f.Alerts, alert)
}

func (f *FakeNotifier) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, event)
}

// Recorded returns a copy of the emitted event names.
func (f *FakeNotifier) Recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Events...)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
