package shipment

import (
	"context"

	"orderservice/internal/domain"
	"orderservice/internal/platform/storage"
)

// OrderStore is the slice of the order repository needed for ownership
// checks on shipment reads.
type OrderStore interface {
	GetByID(ctx context.Context, q storage.Querier, id string) (*domain.Order, error)
}

// Service is the shipment read path. Shipment writes happen inside the
// order ship/deliver transitions; this only exposes lookups scoped by
// the same ownership rules as the order itself.
type Service struct {
	db        *storage.Store
	shipments *Store
	orders    OrderStore
}

// NewService creates the shipment read service.
func NewService(db *storage.Store, shipments *Store, orders OrderStore) *Service {
	return &Service{
		db:        db,
		shipments: shipments,
		orders:    orders,
	}
}

// GetByOrderID returns the shipment for an order. Customers may only
// see their own orders' shipments and vendors only those of orders they
// fulfil part of. Orders that have not shipped yet have no shipment.
func (s *Service) GetByOrderID(ctx context.Context, orderID string, requester domain.Requester) (*domain.Shipment, error) {
	order, err := s.orders.GetByID(ctx, s.db.DB(), orderID)
	if err != nil {
		return nil, err
	}
	if requester.Role == domain.RoleCustomer && order.CustomerID != requester.ID {
		return nil, domain.Forbidden()
	}
	if requester.Role == domain.RoleVendor && !order.HasVendor(requester.ID) {
		return nil, domain.Forbidden()
	}

	sh, err := s.shipments.GetByOrderID(ctx, s.db.DB(), orderID)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, domain.NotFound("Shipment not found")
	}
	return sh, nil
}
