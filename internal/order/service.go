package order

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"orderservice/internal/config"
	"orderservice/internal/domain"
	"orderservice/internal/inventory"
	"orderservice/internal/platform/observability"
	"orderservice/internal/platform/storage"
)

// PaymentStore is the slice of the payment repository the orchestrator
// needs: seeding the initial Pending payment inside the order-creation
// transaction.
type PaymentStore interface {
	Insert(ctx context.Context, q storage.Querier, p *domain.Payment) error
}

// ShipmentStore is the slice of the shipment repository used by the
// ship/deliver transitions.
type ShipmentStore interface {
	Insert(ctx context.Context, q storage.Querier, sh *domain.Shipment) error
	GetByOrderID(ctx context.Context, q storage.Querier, orderID string) (*domain.Shipment, error)
	Update(ctx context.Context, q storage.Querier, sh *domain.Shipment) error
}

// Notifier receives post-commit domain events. Implementations must be
// fire-and-forget: the orchestrator never checks an outcome and a
// notification failure never affects the operation that emitted it.
type Notifier interface {
	OrderCreated(ctx context.Context, order *domain.Order)
	OrderShipped(ctx context.Context, order *domain.Order, shipment *domain.Shipment)
	OrderDelivered(ctx context.Context, order *domain.Order, shipment *domain.Shipment)
	OrderCancelled(ctx context.Context, order *domain.Order)
	LowStock(ctx context.Context, alert domain.LowStockAlert)
}

// Service orchestrates the order lifecycle: the creation transaction
// (stock reservation + order + initial payment as one atomic unit) and
// the ship/deliver/cancel transitions with their status guards.
type Service struct {
	db        *storage.Store
	orders    *Store
	ledger    *inventory.Ledger
	payments  PaymentStore
	shipments ShipmentStore
	notifier  Notifier
	logger    observability.Logger
	tracer    observability.Tracer
}

// NewService creates the order orchestrator with explicit dependencies.
func NewService(db *storage.Store, orders *Store, ledger *inventory.Ledger, payments PaymentStore, shipments ShipmentStore, notifier Notifier, logger observability.Logger, tracer observability.Tracer) *Service {
	return &Service{
		db:        db,
		orders:    orders,
		ledger:    ledger,
		payments:  payments,
		shipments: shipments,
		notifier:  notifier,
		logger:    logger,
		tracer:    tracer,
	}
}

// ItemRequest is one requested line of a new order.
type ItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	Items           []ItemRequest          `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress" binding:"required"`
}

// Create reserves stock for every requested item, snapshots the line
// items, and persists the order together with its initial Pending
// payment in a single transaction. Any failure aborts the whole unit:
// stock reserved for earlier items is released by the rollback.
func (s *Service) Create(ctx context.Context, customerID string, req CreateRequest) (*domain.Order, *domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "order_create")
	defer span.End()

	if len(req.Items) == 0 {
		return nil, nil, domain.Conflict(domain.CodeInvariantViolated, "INV-2: Order must contain at least one product")
	}

	var (
		order *domain.Order
		pay   *domain.Payment
		low   []domain.LowStockAlert
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		items := make([]domain.OrderItem, 0, len(req.Items))
		total := decimal.Zero

		for _, it := range req.Items {
			if it.Quantity <= 0 {
				return domain.Validation("Quantity must be > 0")
			}
			res, err := s.ledger.Reserve(ctx, tx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}

			subtotal := res.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
			total = total.Add(subtotal)
			items = append(items, domain.OrderItem{
				ProductID: res.ProductID,
				VendorID:  res.VendorID,
				Name:      res.Name,
				UnitPrice: res.UnitPrice,
				Quantity:  it.Quantity,
				Subtotal:  subtotal,
			})

			if res.RemainingStock < config.LowStockThreshold {
				low = append(low, domain.LowStockAlert{
					ProductID: res.ProductID,
					VendorID:  res.VendorID,
					Remaining: res.RemainingStock,
				})
			}
		}

		now := time.Now().UTC()
		order = &domain.Order{
			ID:              uuid.NewString(),
			CustomerID:      customerID,
			Items:           items,
			Total:           total,
			Status:          domain.OrderPending,
			ShippingAddress: req.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.orders.Insert(ctx, tx, order); err != nil {
			return err
		}

		pay = &domain.Payment{
			ID:         uuid.NewString(),
			OrderID:    order.ID,
			CustomerID: customerID,
			Amount:     total,
			Method:     domain.MethodOrangeMoney,
			Status:     domain.PaymentPending,
		}
		return s.payments.Insert(ctx, tx, pay)
	})
	if err != nil {
		span.SetStatus(codes.Error, "order creation aborted")
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.total", order.Total.String()),
		attribute.Int("order.items", len(order.Items)),
	)
	span.SetStatus(codes.Ok, "order created")

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("customer_id", customerID),
		zap.String("total", order.Total.String()),
		zap.Int("items", len(order.Items)),
	)

	s.notifier.OrderCreated(ctx, order)
	for _, alert := range low {
		s.notifier.LowStock(ctx, alert)
	}
	return order, pay, nil
}

// MarkShipped transitions a Paid order to Shipped, lazily creating (or
// updating) its shipment record. Only the admin or a vendor fulfilling
// part of the order may ship it.
func (s *Service) MarkShipped(ctx context.Context, orderID string, requester domain.Requester, trackingNumber string) (*domain.Order, *domain.Shipment, error) {
	ctx, span := s.tracer.Start(ctx, "order_mark_shipped")
	defer span.End()

	var (
		order    *domain.Order
		shipment *domain.Shipment
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.orders.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderPaid {
			return domain.Conflict(domain.CodeOrderNotPaid, "INV-6: Order must be paid before shipping")
		}
		switch requester.Role {
		case domain.RoleAdmin:
		case domain.RoleVendor:
			if !order.HasVendor(requester.ID) {
				return domain.Forbidden()
			}
		default:
			return domain.Forbidden()
		}

		ok, err := s.orders.UpdateStatus(ctx, tx, orderID, domain.OrderPaid, domain.OrderShipped)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflict(domain.CodeOrderNotPaid, "INV-6: Order must be paid before shipping")
		}
		order.Status = domain.OrderShipped

		shipment, err = s.shipments.GetByOrderID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if shipment == nil {
			vendorID := order.Items[0].VendorID
			if requester.Role == domain.RoleVendor {
				vendorID = requester.ID
			}
			shipment = &domain.Shipment{
				ID:             uuid.NewString(),
				OrderID:        orderID,
				VendorID:       vendorID,
				TrackingNumber: trackingNumber,
				Status:         domain.ShipmentShipped,
				ShippedAt:      &now,
			}
			return s.shipments.Insert(ctx, tx, shipment)
		}
		shipment.Status = domain.ShipmentShipped
		if trackingNumber != "" {
			shipment.TrackingNumber = trackingNumber
		}
		shipment.ShippedAt = &now
		return s.shipments.Update(ctx, tx, shipment)
	})
	if err != nil {
		return nil, nil, err
	}

	span.SetAttributes(attribute.String("order.id", orderID))
	s.logger.Info("Order shipped",
		zap.String("order_id", orderID),
		zap.String("tracking_number", shipment.TrackingNumber),
	)

	s.notifier.OrderShipped(ctx, order, shipment)
	return order, shipment, nil
}

// MarkDelivered transitions a Shipped order to Delivered and stamps the
// shipment. Only the admin or the owning customer may confirm delivery.
func (s *Service) MarkDelivered(ctx context.Context, orderID string, requester domain.Requester) (*domain.Order, *domain.Shipment, error) {
	ctx, span := s.tracer.Start(ctx, "order_mark_delivered")
	defer span.End()

	var (
		order    *domain.Order
		shipment *domain.Shipment
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.orders.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderShipped {
			return domain.Conflict(domain.CodeInvalidOrderStatus, "Order must be shipped before delivery")
		}
		switch requester.Role {
		case domain.RoleAdmin:
		case domain.RoleCustomer:
			if order.CustomerID != requester.ID {
				return domain.Forbidden()
			}
		default:
			return domain.Forbidden()
		}

		ok, err := s.orders.UpdateStatus(ctx, tx, orderID, domain.OrderShipped, domain.OrderDelivered)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflict(domain.CodeInvalidOrderStatus, "Order must be shipped before delivery")
		}
		order.Status = domain.OrderDelivered

		shipment, err = s.shipments.GetByOrderID(ctx, tx, orderID)
		if err != nil || shipment == nil {
			return err
		}
		now := time.Now().UTC()
		shipment.Status = domain.ShipmentDelivered
		shipment.DeliveredAt = &now
		return s.shipments.Update(ctx, tx, shipment)
	})
	if err != nil {
		return nil, nil, err
	}

	span.SetAttributes(attribute.String("order.id", orderID))
	s.logger.Info("Order delivered", zap.String("order_id", orderID))

	s.notifier.OrderDelivered(ctx, order, shipment)
	return order, shipment, nil
}

// Cancel cancels a Pending order, restoring stock for every line item.
// The restores and the status write share one transaction; if any
// restore fails the whole cancellation aborts and the order stays
// Pending. Only the admin or the owning customer may cancel.
func (s *Service) Cancel(ctx context.Context, orderID string, requester domain.Requester) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order_cancel")
	defer span.End()

	var order *domain.Order
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.orders.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		switch requester.Role {
		case domain.RoleAdmin:
		case domain.RoleCustomer:
			if order.CustomerID != requester.ID {
				return domain.Forbidden()
			}
		default:
			return domain.Forbidden()
		}
		if order.Status != domain.OrderPending {
			return domain.Conflict(domain.CodeInvalidOrderStatus, "Order cannot be cancelled")
		}

		for _, it := range order.Items {
			if err := s.ledger.Restore(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		ok, err := s.orders.UpdateStatus(ctx, tx, orderID, domain.OrderPending, domain.OrderCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflict(domain.CodeInvalidOrderStatus, "Order cannot be cancelled")
		}
		order.Status = domain.OrderCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", orderID))
	s.logger.Info("Order cancelled", zap.String("order_id", orderID))

	s.notifier.OrderCancelled(ctx, order)
	return order, nil
}

// GetByID loads an order, restricting customers to their own orders and
// vendors to orders they fulfil part of.
func (s *Service) GetByID(ctx context.Context, orderID string, requester domain.Requester) (*domain.Order, error) {
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
	return order, nil
}

// ListQuery is the input to List.
type ListQuery struct {
	Status string
	Page   int
	Limit  int
}

// Pagination describes the returned page of a listing.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// List returns orders visible to the requester, newest first: customers
// see their own, vendors see orders containing their items, the admin
// sees everything. Status filters must name a defined order status.
func (s *Service) List(ctx context.Context, requester domain.Requester, query ListQuery) ([]*domain.Order, Pagination, error) {
	filter := ListFilter{Page: query.Page, Limit: query.Limit}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	if query.Status != "" {
		status := domain.OrderStatus(query.Status)
		if !status.Valid() {
			return nil, Pagination{}, domain.Validation("Unknown order status")
		}
		filter.Status = status
	}

	switch requester.Role {
	case domain.RoleCustomer:
		filter.CustomerID = requester.ID
	case domain.RoleVendor:
		filter.VendorID = requester.ID
	}

	orders, total, err := s.orders.List(ctx, s.db.DB(), filter)
	if err != nil {
		return nil, Pagination{}, err
	}

	pages := (total + filter.Limit - 1) / filter.Limit
	return orders, Pagination{
		Page:    filter.Page,
		Limit:   filter.Limit,
		Total:   total,
		Pages:   pages,
		HasNext: filter.Page*filter.Limit < total,
		HasPrev: filter.Page > 1,
	}, nil
}
