package payment

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"orderservice/internal/domain"
	"orderservice/internal/platform/observability"
	"orderservice/internal/platform/storage"
)

// OrderStore is the slice of the order repository the reconciler needs:
// reading the order and flipping Pending to Paid as a compare-and-set.
type OrderStore interface {
	GetByID(ctx context.Context, q storage.Querier, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, q storage.Querier, id string, from, to domain.OrderStatus) (bool, error)
}

// Service reconciles payment confirmations from two entry points — the
// authenticated direct-payment call and the unauthenticated signed
// webhook — against the order and payment records. Both paths funnel
// into the same guards: exact amount equality (INV-5) and the
// Completed-payment compare-and-set, so concurrent or repeated
// confirmations can never double-apply.
type Service struct {
	db       *storage.Store
	payments *Store
	orders   OrderStore
	secret   string
	logger   observability.Logger
	tracer   observability.Tracer
}

// NewService creates the payment reconciler. secret keys webhook
// signature verification; empty disables it.
func NewService(db *storage.Store, payments *Store, orders OrderStore, secret string, logger observability.Logger, tracer observability.Tracer) *Service {
	return &Service{
		db:       db,
		payments: payments,
		orders:   orders,
		secret:   secret,
		logger:   logger,
		tracer:   tracer,
	}
}

// DirectRequest is the input to PayDirect.
type DirectRequest struct {
	OrderID string               `json:"orderId" binding:"required"`
	Method  domain.PaymentMethod `json:"method" binding:"required"`
	Amount  decimal.Decimal      `json:"amount" binding:"required"`
}

// PayDirect applies a payment from the owning customer. The order must
// be Pending, the amount must equal the order total exactly, and an
// already-Completed payment rejects the call. The payment completion
// and the order status flip share one transaction with the guards
// re-checked inside it.
func (s *Service) PayDirect(ctx context.Context, customerID string, req DirectRequest) (*domain.Payment, *domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "payment_direct")
	defer span.End()

	if !req.Method.Valid() {
		return nil, nil, domain.Validation("Unknown payment method")
	}

	var (
		pay   *domain.Payment
		order *domain.Order
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.orders.GetByID(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order.CustomerID != customerID {
			return domain.Forbidden()
		}
		if order.Status == domain.OrderPaid {
			return domain.Conflict(domain.CodeOrderAlreadyPaid, "Order already paid")
		}
		if order.Status != domain.OrderPending {
			return domain.Conflict(domain.CodeInvalidOrderStatus, "Order cannot be paid")
		}
		if !order.Total.Equal(req.Amount) {
			return domain.Conflict(domain.CodeAmountMismatch, "INV-5: Payment amount does not match order total")
		}

		pay, err = s.payments.GetByOrderID(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if pay != nil && pay.Status == domain.PaymentCompleted {
			return domain.Conflict(domain.CodeOrderAlreadyPaid, "Order already paid")
		}

		transactionID, err := generateTransactionID()
		if err != nil {
			return err
		}

		if pay == nil {
			pay = &domain.Payment{
				ID:            uuid.NewString(),
				OrderID:       order.ID,
				CustomerID:    customerID,
				Amount:        req.Amount,
				Method:        req.Method,
				Status:        domain.PaymentCompleted,
				TransactionID: transactionID,
			}
			if err := s.payments.Insert(ctx, tx, pay); err != nil {
				return err
			}
		} else {
			ok, err := s.payments.Complete(ctx, tx, order.ID, req.Method, req.Amount, transactionID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.Conflict(domain.CodeOrderAlreadyPaid, "Order already paid")
			}
			pay.Method = req.Method
			pay.Amount = req.Amount
			pay.Status = domain.PaymentCompleted
			pay.TransactionID = transactionID
		}

		ok, err := s.orders.UpdateStatus(ctx, tx, order.ID, domain.OrderPending, domain.OrderPaid)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflict(domain.CodeOrderAlreadyPaid, "Order already paid")
		}
		order.Status = domain.OrderPaid
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("payment.method", string(pay.Method)),
	)
	s.logger.Info("Payment completed",
		zap.String("order_id", order.ID),
		zap.String("payment_id", pay.ID),
		zap.String("method", string(pay.Method)),
	)
	return pay, order, nil
}

// WebhookPayload is the provider's confirmation message.
type WebhookPayload struct {
	TransactionID string          `json:"transactionId" binding:"required"`
	OrderID       string          `json:"orderId" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Status        string          `json:"status" binding:"required"`
}

// Webhook applies a payment confirmation from the provider. When a
// secret is configured, the signature must match the HMAC over the
// payload byte-for-byte before anything else is looked at. Only SUCCESS
// confirmations are accepted, the amount must equal the order total
// (the signature alone is never trusted to vouch for the amount), and
// the whole operation is idempotent: a Completed payment or an
// already-Paid order short-circuits to success without writing.
func (s *Service) Webhook(ctx context.Context, payload WebhookPayload, signature string) (*domain.Payment, *domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "payment_webhook")
	defer span.End()

	if s.secret != "" {
		expected := Signature(s.secret, payload.TransactionID, payload.OrderID, payload.Amount, payload.Status)
		if signature == "" || !hmac.Equal([]byte(signature), []byte(expected)) {
			return nil, nil, domain.Unauthorized("Invalid signature")
		}
	}

	if payload.Status != "SUCCESS" {
		return nil, nil, domain.NewError(http.StatusBadRequest, domain.CodePaymentFailed, "Payment not successful")
	}

	var (
		pay   *domain.Payment
		order *domain.Order
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.orders.GetByID(ctx, tx, payload.OrderID)
		if err != nil {
			return err
		}
		if !order.Total.Equal(payload.Amount) {
			return domain.Conflict(domain.CodeAmountMismatch, "INV-5: Payment amount does not match order total")
		}

		pay, err = s.payments.GetByOrderID(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if pay == nil {
			pay = &domain.Payment{
				ID:            uuid.NewString(),
				OrderID:       order.ID,
				CustomerID:    order.CustomerID,
				Amount:        payload.Amount,
				Method:        domain.MethodOrangeMoney,
				Status:        domain.PaymentCompleted,
				TransactionID: payload.TransactionID,
			}
			if err := s.payments.Insert(ctx, tx, pay); err != nil {
				return err
			}
		} else if pay.Status != domain.PaymentCompleted {
			ok, err := s.payments.Complete(ctx, tx, order.ID, pay.Method, payload.Amount, payload.TransactionID)
			if err != nil {
				return err
			}
			if ok {
				pay.Amount = payload.Amount
				pay.Status = domain.PaymentCompleted
				pay.TransactionID = payload.TransactionID
			}
		}

		// Flip to Paid only from Pending; later statuses already imply
		// payment and must not move backwards.
		if order.Status == domain.OrderPending {
			ok, err := s.orders.UpdateStatus(ctx, tx, order.ID, domain.OrderPending, domain.OrderPaid)
			if err != nil {
				return err
			}
			if ok {
				order.Status = domain.OrderPaid
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	s.logger.Info("Webhook payment reconciled",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", payload.TransactionID),
	)
	return pay, order, nil
}

// Signature computes the hex HMAC-SHA256 the payment provider attaches
// to webhook calls: keyed by the shared secret over the ordered
// concatenation transactionId.orderId.amount.status.
func Signature(secret, transactionID, orderID string, amount decimal.Decimal, status string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s.%s.%s", transactionID, orderID, amount.String(), status)
	return hex.EncodeToString(mac.Sum(nil))
}

func generateTransactionID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating transaction id: %w", err)
	}
	return "TXN-" + hex.EncodeToString(buf), nil
}
