package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"orderservice/internal/domain"
	"orderservice/internal/platform/storage"
)

// Reservation is the pre-decrement product snapshot returned by Reserve,
// used to build the order's line item, plus the post-decrement stock for
// low-stock detection.
type Reservation struct {
	ProductID      string
	VendorID       string
	Name           string
	UnitPrice      decimal.Decimal
	RemainingStock int
}

// Ledger owns product stock mutations. Both workflows that touch stock
// (order create decrements, order cancel restores) go through it, always
// inside the caller's transaction, and the decrement is a single
// conditional UPDATE so concurrent orders for the same product cannot
// lose updates.
type Ledger struct{}

// NewLedger creates an inventory ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve atomically decrements stock by quantity within q's
// transaction. A missing or inactive product is NOT_FOUND; a stock level
// below quantity is INSUFFICIENT_STOCK and leaves the row untouched.
func (l *Ledger) Reserve(ctx context.Context, q storage.Querier, productID string, quantity int) (*Reservation, error) {
	row := q.QueryRowContext(ctx,
		`SELECT vendor_id, name, price, stock, status FROM products WHERE id = ?`, productID)

	var (
		vendorID, name, price, status string
		stock                         int
	)
	if err := row.Scan(&vendorID, &name, &price, &stock, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("Product not found")
		}
		return nil, fmt.Errorf("loading product %s: %w", productID, err)
	}
	if domain.ProductStatus(status) != domain.ProductActive {
		// Inactive products are indistinguishable from absent ones.
		return nil, domain.NotFound("Product not found")
	}
	if stock < quantity {
		return nil, domain.Conflict(domain.CodeInsufficientStock, "INV-1: Insufficient stock")
	}

	res, err := q.ExecContext(ctx,
		`UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`,
		quantity, time.Now().UTC(), productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("reserving stock for product %s: %w", productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reserving stock for product %s: %w", productID, err)
	}
	if affected == 0 {
		return nil, domain.Conflict(domain.CodeInsufficientStock, "INV-1: Insufficient stock")
	}

	unitPrice, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parsing price of product %s: %w", productID, err)
	}

	return &Reservation{
		ProductID:      productID,
		VendorID:       vendorID,
		Name:           name,
		UnitPrice:      unitPrice,
		RemainingStock: stock - quantity,
	}, nil
}

// Restore atomically increments stock by quantity within q's
// transaction. Callers must invoke it at most once per cancelled line
// item. A missing product row is an error so the enclosing cancellation
// aborts rather than restoring a partial set of items.
func (l *Ledger) Restore(ctx context.Context, q storage.Querier, productID string, quantity int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?`,
		quantity, time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("restoring stock for product %s: %w", productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("restoring stock for product %s: %w", productID, err)
	}
	if affected == 0 {
		return domain.NotFound("Product not found")
	}
	return nil
}
