package order_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderservice/internal/domain"
	"orderservice/internal/order"
	"orderservice/internal/platform/storage"
	"orderservice/internal/testutil"
)

var testAddress = domain.ShippingAddress{
	Street:  "12 Rue du Commerce",
	City:    "Abidjan",
	Country: "CI",
	Phone:   "+2250102030405",
}

func TestCreateOrderSnapshotsItemsAndTotal(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, notifier := testutil.Services(t, store, "")
	keyboard := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)
	mouse := testutil.SeedProduct(t, store, "vendor-2", "Mouse", "4500", 20)

	o, p, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items: []order.ItemRequest{
			{ProductID: keyboard.ID, Quantity: 2},
			{ProductID: mouse.ID, Quantity: 3},
		},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Keyboard", o.Items[0].Name)
	assert.True(t, o.Items[0].Subtotal.Equal(decimal.RequireFromString("30000")))
	assert.True(t, o.Items[1].Subtotal.Equal(decimal.RequireFromString("13500")))
	assert.True(t, o.Total.Equal(decimal.RequireFromString("43500")))

	// Line-item subtotals always sum to the persisted total.
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal)
	}
	assert.True(t, sum.Equal(o.Total))

	assert.Equal(t, 8, testutil.ProductStock(t, store, keyboard.ID))
	assert.Equal(t, 17, testutil.ProductStock(t, store, mouse.ID))

	assert.Equal(t, domain.PaymentPending, p.Status)
	assert.Equal(t, domain.MethodOrangeMoney, p.Method)
	assert.True(t, p.Amount.Equal(o.Total))
	assert.Equal(t, o.ID, p.OrderID)

	assert.Contains(t, notifier.Recorded(), "order:created")
}

func TestCreateOrderPriceSnapshotIsStable(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)

	// A later price change must not leak into the persisted order.
	_, err = store.DB().ExecContext(context.Background(),
		`UPDATE products SET price = '99999' WHERE id = ?`, product.ID)
	require.NoError(t, err)

	reloaded, err := orders.GetByID(context.Background(), o.ID, domain.Requester{ID: "customer-1", Role: domain.RoleCustomer})
	require.NoError(t, err)
	assert.True(t, reloaded.Items[0].UnitPrice.Equal(decimal.RequireFromString("15000")))
	assert.True(t, reloaded.Total.Equal(decimal.RequireFromString("15000")))
}

func TestCreateOrderEmptyItems(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")

	_, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		ShippingAddress: testAddress,
	})
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvariantViolated, de.Code)
}

func TestCreateOrderNonPositiveQuantity(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	for _, quantity := range []int{0, -2} {
		_, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
			Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: quantity}},
			ShippingAddress: testAddress,
		})
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeValidation, de.Code)
	}
	assert.Equal(t, 10, testutil.ProductStock(t, store, product.ID))
}

func TestCreateOrderAllOrNothing(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	first := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)
	second := testutil.SeedProduct(t, store, "vendor-1", "Mouse", "4500", 2)

	_, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items: []order.ItemRequest{
			{ProductID: first.ID, Quantity: 3},
			{ProductID: second.ID, Quantity: 5},
		},
		ShippingAddress: testAddress,
	})
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInsufficientStock, de.Code)

	// The first item's decrement was rolled back with the rest.
	assert.Equal(t, 10, testutil.ProductStock(t, store, first.ID))
	assert.Equal(t, 2, testutil.ProductStock(t, store, second.ID))

	listed, _, err := orders.List(context.Background(), domain.Requester{ID: "customer-1", Role: domain.RoleCustomer}, order.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreateOrderEmitsLowStockAlert(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, notifier := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 6)

	_, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 2}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)

	require.Len(t, notifier.Alerts, 1)
	assert.Equal(t, product.ID, notifier.Alerts[0].ProductID)
	assert.Equal(t, "vendor-1", notifier.Alerts[0].VendorID)
	assert.Equal(t, 4, notifier.Alerts[0].Remaining)
}

func TestCancelRestoresStock(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, notifier := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 3}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	require.Equal(t, 7, testutil.ProductStock(t, store, product.ID))

	cancelled, err := orders.Cancel(context.Background(), o.ID, domain.Requester{ID: "customer-1", Role: domain.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancelled.Status)
	assert.Equal(t, 10, testutil.ProductStock(t, store, product.ID))
	assert.Contains(t, notifier.Recorded(), "order:cancelled")
}

func TestCancelRequiresPendingStatus(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 3}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	markPaid(t, store, o.ID)

	_, err = orders.Cancel(context.Background(), o.ID, domain.Requester{ID: "customer-1", Role: domain.RoleCustomer})
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidOrderStatus, de.Code)

	// Nothing changed: stock stays decremented, order stays Paid.
	assert.Equal(t, 7, testutil.ProductStock(t, store, product.ID))
	reloaded, err := orders.GetByID(context.Background(), o.ID, domain.Requester{ID: "customer-1", Role: domain.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, reloaded.Status)
}

func TestCancelOwnershipChecks(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)

	for _, requester := range []domain.Requester{
		{ID: "customer-2", Role: domain.RoleCustomer},
		{ID: "vendor-1", Role: domain.RoleVendor},
	} {
		_, err := orders.Cancel(context.Background(), o.ID, requester)
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeForbidden, de.Code)
	}

	// Admin may cancel on the customer's behalf.
	_, err = orders.Cancel(context.Background(), o.ID, domain.Requester{ID: "admin-1", Role: domain.RoleAdmin})
	require.NoError(t, err)
}

func TestMarkShippedRequiresPaid(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)

	_, _, err = orders.MarkShipped(context.Background(), o.ID, domain.Requester{ID: "vendor-1", Role: domain.RoleVendor}, "TRK-001")
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeOrderNotPaid, de.Code)
}

func TestMarkShippedByVendorCreatesShipment(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, shipments, notifier := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	markPaid(t, store, o.ID)

	shipped, sh, err := orders.MarkShipped(context.Background(), o.ID, domain.Requester{ID: "vendor-1", Role: domain.RoleVendor}, "TRK-001")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, shipped.Status)
	assert.Equal(t, "vendor-1", sh.VendorID)
	assert.Equal(t, "TRK-001", sh.TrackingNumber)
	assert.Equal(t, domain.ShipmentShipped, sh.Status)
	require.NotNil(t, sh.ShippedAt)
	assert.Contains(t, notifier.Recorded(), "order:shipped")

	loaded, err := shipments.GetByOrderID(context.Background(), o.ID, domain.Requester{ID: "customer-1", Role: domain.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, sh.ID, loaded.ID)
}

func TestMarkShippedRoleChecks(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	markPaid(t, store, o.ID)

	for _, requester := range []domain.Requester{
		{ID: "vendor-2", Role: domain.RoleVendor},
		{ID: "customer-1", Role: domain.RoleCustomer},
	} {
		_, _, err := orders.MarkShipped(context.Background(), o.ID, requester, "")
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeForbidden, de.Code)
	}
}

func TestMarkShippedTwiceConflicts(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	markPaid(t, store, o.ID)

	_, _, err = orders.MarkShipped(context.Background(), o.ID, domain.Requester{ID: "vendor-1", Role: domain.RoleVendor}, "TRK-001")
	require.NoError(t, err)

	_, _, err = orders.MarkShipped(context.Background(), o.ID, domain.Requester{ID: "vendor-1", Role: domain.RoleVendor}, "TRK-002")
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeOrderNotPaid, de.Code)
}

func TestMarkShippedByAdminUsesFirstItemVendor(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	first := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)
	second := testutil.SeedProduct(t, store, "vendor-2", "Mouse", "4500", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items: []order.ItemRequest{
			{ProductID: first.ID, Quantity: 1},
			{ProductID: second.ID, Quantity: 1},
		},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	markPaid(t, store, o.ID)

	_, sh, err := orders.MarkShipped(context.Background(), o.ID, domain.Requester{ID: "admin-1", Role: domain.RoleAdmin}, "")
	require.NoError(t, err)
	assert.Equal(t, "vendor-1", sh.VendorID)
	assert.Empty(t, sh.TrackingNumber)
}

func TestMarkDeliveredRequiresShipped(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	markPaid(t, store, o.ID)

	_, _, err = orders.MarkDelivered(context.Background(), o.ID, domain.Requester{ID: "customer-1", Role: domain.RoleCustomer})
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidOrderStatus, de.Code)
}

func TestMarkDeliveredStampsShipment(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, notifier := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)
	markPaid(t, store, o.ID)
	_, _, err = orders.MarkShipped(context.Background(), o.ID, domain.Requester{ID: "vendor-1", Role: domain.RoleVendor}, "TRK-001")
	require.NoError(t, err)

	// A vendor cannot confirm delivery.
	_, _, err = orders.MarkDelivered(context.Background(), o.ID, domain.Requester{ID: "vendor-1", Role: domain.RoleVendor})
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeForbidden, de.Code)

	delivered, sh, err := orders.MarkDelivered(context.Background(), o.ID, domain.Requester{ID: "customer-1", Role: domain.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDelivered, delivered.Status)
	assert.Equal(t, domain.ShipmentDelivered, sh.Status)
	require.NotNil(t, sh.DeliveredAt)
	assert.Contains(t, notifier.Recorded(), "order:delivered")
}

func TestGetByIDAccessControl(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	product := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 10)

	o, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)

	allowed := []domain.Requester{
		{ID: "customer-1", Role: domain.RoleCustomer},
		{ID: "vendor-1", Role: domain.RoleVendor},
		{ID: "admin-1", Role: domain.RoleAdmin},
	}
	for _, requester := range allowed {
		_, err := orders.GetByID(context.Background(), o.ID, requester)
		assert.NoError(t, err)
	}

	denied := []domain.Requester{
		{ID: "customer-2", Role: domain.RoleCustomer},
		{ID: "vendor-2", Role: domain.RoleVendor},
	}
	for _, requester := range denied {
		_, err := orders.GetByID(context.Background(), o.ID, requester)
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeForbidden, de.Code)
	}
}

func TestListScopesAndPaginates(t *testing.T) {
	store := testutil.NewStore(t)
	orders, _, _, _ := testutil.Services(t, store, "")
	mine := testutil.SeedProduct(t, store, "vendor-1", "Keyboard", "15000", 100)
	theirs := testutil.SeedProduct(t, store, "vendor-2", "Mouse", "4500", 100)

	for i := 0; i < 3; i++ {
		_, _, err := orders.Create(context.Background(), "customer-1", order.CreateRequest{
			Items:           []order.ItemRequest{{ProductID: mine.ID, Quantity: 1}},
			ShippingAddress: testAddress,
		})
		require.NoError(t, err)
	}
	_, _, err := orders.Create(context.Background(), "customer-2", order.CreateRequest{
		Items:           []order.ItemRequest{{ProductID: theirs.ID, Quantity: 1}},
		ShippingAddress: testAddress,
	})
	require.NoError(t, err)

	listed, pagination, err := orders.List(context.Background(), domain.Requester{ID: "customer-1", Role: domain.RoleCustomer}, order.ListQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
	assert.Equal(t, 3, pagination.Total)
	assert.Equal(t, 2, pagination.Pages)
	assert.True(t, pagination.HasNext)
	assert.False(t, pagination.HasPrev)

	vendorOrders, _, err := orders.List(context.Background(), domain.Requester{ID: "vendor-2", Role: domain.RoleVendor}, order.ListQuery{})
	require.NoError(t, err)
	require.Len(t, vendorOrders, 1)
	assert.Equal(t, "customer-2", vendorOrders[0].CustomerID)

	adminOrders, adminPagination, err := orders.List(context.Background(), domain.Requester{ID: "admin-1", Role: domain.RoleAdmin}, order.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, adminOrders, 4)
	assert.Equal(t, 4, adminPagination.Total)

	pending, _, err := orders.List(context.Background(), domain.Requester{ID: "admin-1", Role: domain.RoleAdmin}, order.ListQuery{Status: "Pending"})
	require.NoError(t, err)
	assert.Len(t, pending, 4)

	_, _, err = orders.List(context.Background(), domain.Requester{ID: "admin-1", Role: domain.RoleAdmin}, order.ListQuery{Status: "Lost"})
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeValidation, de.Code)
}

// markPaid flips an order to Paid directly; payment-path coverage lives
// in the payment package tests.
func markPaid(t *testing.T, store *storage.Store, orderID string) {
	t.Helper()
	res, err := store.DB().ExecContext(context.Background(),
		`UPDATE orders SET status = 'Paid' WHERE id = ?`, orderID)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
