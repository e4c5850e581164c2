package shipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"orderservice/internal/domain"
	"orderservice/internal/platform/storage"
)

// Store is the repository for shipment rows. An order has at most one
// shipment, created lazily on the first ship transition.
type Store struct{}

// NewStore creates a shipment repository.
func NewStore() *Store {
	return &Store{}
}

// Insert persists a new shipment.
func (s *Store) Insert(ctx context.Context, q storage.Querier, sh *domain.Shipment) error {
	now := time.Now().UTC()
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = now
	}
	sh.UpdatedAt = now

	_, err := q.ExecContext(ctx,
		`INSERT INTO shipments (id, order_id, vendor_id, tracking_number, status, shipped_at, delivered_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sh.ID, sh.OrderID, sh.VendorID, nullString(sh.TrackingNumber), string(sh.Status),
		sh.ShippedAt, sh.DeliveredAt, sh.CreatedAt, sh.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting shipment for order %s: %w", sh.OrderID, err)
	}
	return nil
}

// GetByOrderID loads the shipment for an order, or nil when none exists
// yet.
func (s *Store) GetByOrderID(ctx context.Context, q storage.Querier, orderID string) (*domain.Shipment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, order_id, vendor_id, tracking_number, status, shipped_at, delivered_at, created_at, updated_at
		 FROM shipments WHERE order_id = ?`, orderID)

	var (
		sh       domain.Shipment
		tracking sql.NullString
		status   string
	)
	err := row.Scan(&sh.ID, &sh.OrderID, &sh.VendorID, &tracking, &status,
		&sh.ShippedAt, &sh.DeliveredAt, &sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading shipment for order %s: %w", orderID, err)
	}

	sh.TrackingNumber = tracking.String
	sh.Status = domain.ShipmentStatus(status)
	return &sh, nil
}

// Update rewrites the mutable shipment fields.
func (s *Store) Update(ctx context.Context, q storage.Querier, sh *domain.Shipment) error {
	sh.UpdatedAt = time.Now().UTC()
	_, err := q.ExecContext(ctx,
		`UPDATE shipments SET tracking_number = ?, status = ?, shipped_at = ?, delivered_at = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(sh.TrackingNumber), string(sh.Status), sh.ShippedAt, sh.DeliveredAt, sh.UpdatedAt, sh.ID)
	if err != nil {
		return fmt.Errorf("updating shipment %s: %w", sh.ID, err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
