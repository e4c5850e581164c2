package payment

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

// Store is the repository for payment rows. An order has one logical
// payment record; completion is a compare-and-set so the Pending→
// Completed transition happens at most once no matter how many callers
// race.
type Store struct{}

// NewStore creates a payment repository.
func NewStore() *Store {
	return &Store{}
}

// Insert persists a new payment record.
func (s *Store) Insert(ctx context.Context, q storage.Querier, p *domain.Payment) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := q.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, customer_id, amount, method, status, transaction_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrderID, p.CustomerID, p.Amount.String(), string(p.Method), string(p.Status),
		nullString(p.TransactionID), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting payment for order %s: %w", p.OrderID, err)
	}
	return nil
}

// GetByOrderID loads the payment record for an order, or nil when none
// exists.
func (s *Store) GetByOrderID(ctx context.Context, q storage.Querier, orderID string) (*domain.Payment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, order_id, customer_id, amount, method, status, transaction_id, created_at, updated_at
		 FROM payments WHERE order_id = ?`, orderID)

	var (
		p      domain.Payment
		amount string
		method string
		status string
		txnID  sql.NullString
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.CustomerID, &amount, &method, &status, &txnID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading payment for order %s: %w", orderID, err)
	}

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parsing payment amount for order %s: %w", orderID, err)
	}
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentStatus(status)
	p.TransactionID = txnID.String
	return &p, nil
}

// Complete transitions the order's payment to Completed as a
// compare-and-set, recording the method, amount and transaction
// reference. It reports whether a row changed; false means the payment
// was already Completed (or absent) and nothing was written.
func (s *Store) Complete(ctx context.Context, q storage.Querier, orderID string, method domain.PaymentMethod, amount decimal.Decimal, transactionID string) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE payments SET status = ?, method = ?, amount = ?, transaction_id = ?, updated_at = ?
		 WHERE order_id = ? AND status != ?`,
		string(domain.PaymentCompleted), string(method), amount.String(), transactionID,
		time.Now().UTC(), orderID, string(domain.PaymentCompleted))
	if err != nil {
		return false, fmt.Errorf("completing payment for order %s: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("completing payment for order %s: %w", orderID, err)
	}
	return affected > 0, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
