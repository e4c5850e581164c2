package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus controls whether a product can be ordered. Inactive
// products are invisible to the ordering path.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

// Product is the catalog entry the inventory ledger operates on. Stock
// is never negative; the ledger enforces the floor on every decrement.
type Product struct {
	ID        string          `json:"id"`
	VendorID  string          `json:"vendorId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Status    ProductStatus   `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// OrderStatus is the order lifecycle state. Legal transitions:
//
//	Pending -> Paid -> Shipped -> Delivered
//	Pending -> Cancelled
//
// Nothing else; every transition is guarded by a precondition check on
// the current status.
type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderPaid      OrderStatus = "Paid"
	OrderShipped   OrderStatus = "Shipped"
	OrderDelivered OrderStatus = "Delivered"
	OrderCancelled OrderStatus = "Cancelled"
)

// Valid reports whether s is one of the defined order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// OrderItem is a line item snapshotted at order-creation time. Name and
// unit price are copied from the product, not referenced, so later
// catalog edits never change historical orders.
type OrderItem struct {
	ProductID string          `json:"productId"`
	VendorID  string          `json:"vendorId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// ShippingAddress is immutable after order creation.
type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// Order is the order aggregate: line items, total and shipping address
// are computed once at creation; only Status changes afterwards.
type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customerId"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// VendorIDs returns the distinct vendor ids across the order's line
// items, in first-appearance order.
func (o *Order) VendorIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	var ids []string
	for _, it := range o.Items {
		if !seen[it.VendorID] {
			seen[it.VendorID] = true
			ids = append(ids, it.VendorID)
		}
	}
	return ids
}

// HasVendor reports whether vendorID fulfils at least one line item.
func (o *Order) HasVendor(vendorID string) bool {
	for _, it := range o.Items {
		if it.VendorID == vendorID {
			return true
		}
	}
	return false
}

// PaymentMethod is the closed set of accepted payment channels.
type PaymentMethod string

const (
	MethodOrangeMoney PaymentMethod = "orange_money"
	MethodWave        PaymentMethod = "wave"
	MethodMoov        PaymentMethod = "moov"
	MethodCash        PaymentMethod = "cash"
)

// Valid reports whether m is one of the defined payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodOrangeMoney, MethodWave, MethodMoov, MethodCash:
		return true
	}
	return false
}

// PaymentStatus is the payment lifecycle state. Completed is terminal
// and acts as the idempotency gate: at most one payment per order ever
// reaches it.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
)

// Payment is the payment record for an order, created Pending alongside
// the order and transitioned by the reconciler. Amount must equal the
// order total exactly before the record may be completed.
type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	CustomerID    string          `json:"customerId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	Status        PaymentStatus   `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ShipmentStatus is the logistics state of a shipment record.
type ShipmentStatus string

const (
	ShipmentPreparing ShipmentStatus = "Preparing"
	ShipmentShipped   ShipmentStatus = "Shipped"
	ShipmentInTransit ShipmentStatus = "InTransit"
	ShipmentDelivered ShipmentStatus = "Delivered"
)

// Shipment is created lazily the first time an order is marked shipped
// and mutated in step with the order status afterwards.
type Shipment struct {
	ID             string         `json:"id"`
	OrderID        string         `json:"orderId"`
	VendorID       string         `json:"vendorId"`
	TrackingNumber string         `json:"trackingNumber,omitempty"`
	Status         ShipmentStatus `json:"status"`
	ShippedAt      *time.Time     `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time     `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// LowStockAlert reports a product whose stock fell below the low-stock
// threshold while an order was being created. Remaining is the
// in-transaction post-decrement value.
type LowStockAlert struct {
	ProductID string `json:"productId"`
	VendorID  string `json:"vendorId"`
	Remaining int    `json:"remaining"`
}
