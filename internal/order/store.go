package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"orderservice/internal/domain"
	"orderservice/internal/platform/storage"
)

// Store is the repository for order rows and their embedded line items.
// Line items live in order_items and are only ever written together with
// their order; they are not independently addressable.
type Store struct{}

// NewStore creates an order repository.
func NewStore() *Store {
	return &Store{}
}

// Insert persists an order and its line items.
func (s *Store) Insert(ctx context.Context, q storage.Querier, o *domain.Order) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO orders (id, customer_id, total, status, ship_street, ship_city, ship_postal_code, ship_country, ship_phone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CustomerID, o.Total.String(), string(o.Status),
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.PostalCode,
		o.ShippingAddress.Country, o.ShippingAddress.Phone, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting order %s: %w", o.ID, err)
	}

	for i, it := range o.Items {
		_, err := q.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, vendor_id, name, unit_price, quantity, subtotal)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, i, it.ProductID, it.VendorID, it.Name, it.UnitPrice.String(), it.Quantity, it.Subtotal.String())
		if err != nil {
			return fmt.Errorf("inserting line item %d of order %s: %w", i, o.ID, err)
		}
	}
	return nil
}

// GetByID loads an order with its line items. Absent orders are
// NOT_FOUND.
func (s *Store) GetByID(ctx context.Context, q storage.Querier, id string) (*domain.Order, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, customer_id, total, status, ship_street, ship_city, ship_postal_code, ship_country, ship_phone, created_at, updated_at
		 FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("Order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", id, err)
	}

	items, err := s.loadItems(ctx, q, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// UpdateStatus transitions an order from one status to another as a
// compare-and-set. It reports whether the row actually changed; false
// means the precondition no longer held and the caller must treat the
// transition as conflicted.
func (s *Store) UpdateStatus(ctx context.Context, q storage.Querier, id string, from, to domain.OrderStatus) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("updating order %s status: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating order %s status: %w", id, err)
	}
	return affected > 0, nil
}

// ListFilter scopes and pages an order listing.
type ListFilter struct {
	// CustomerID restricts to orders owned by this customer.
	CustomerID string
	// VendorID restricts to orders containing at least one line item
	// fulfilled by this vendor.
	VendorID string
	// Status restricts to a single order status when non-empty.
	Status domain.OrderStatus

	Page  int
	Limit int
}

// List returns the matching page, newest first, plus the total match
// count for pagination.
func (s *Store) List(ctx context.Context, q storage.Querier, f ListFilter) ([]*domain.Order, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.VendorID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.vendor_id = ?)")
		args = append(args, f.VendorID)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	rows, err := q.QueryContext(ctx,
		`SELECT id, customer_id, total, status, ship_street, ship_city, ship_postal_code, ship_country, ship_phone, created_at, updated_at
		 FROM orders`+clause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []*domain.Order
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	items, err := s.loadItems(ctx, q, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
	}
	return orders, total, nil
}

func scanOrder(scan func(dest ...any) error) (*domain.Order, error) {
	var (
		o          domain.Order
		total      string
		status     string
		postalCode sql.NullString
	)
	err := scan(&o.ID, &o.CustomerID, &total, &status,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &postalCode,
		&o.ShippingAddress.Country, &o.ShippingAddress.Phone, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parsing order total: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	o.ShippingAddress.PostalCode = postalCode.String
	return &o, nil
}

func (s *Store) loadItems(ctx context.Context, q storage.Querier, orderIDs []string) (map[string][]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return map[string][]domain.OrderItem{}, nil
	}

	placeholders := strings.Repeat("?,", len(orderIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT order_id, product_id, vendor_id, name, unit_price, quantity, subtotal
		 FROM order_items WHERE order_id IN (`+placeholders+`) ORDER BY order_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("loading order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID             string
			it                  domain.OrderItem
			unitPrice, subtotal string
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.VendorID, &it.Name, &unitPrice, &it.Quantity, &subtotal); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("parsing line item price: %w", err)
		}
		if it.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, fmt.Errorf("parsing line item subtotal: %w", err)
		}
		items[orderID] = append(items[orderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading order items: %w", err)
	}
	return items, nil
}
