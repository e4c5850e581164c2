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

// ProductStore is the repository for catalog rows. Catalog management
// has its own surface elsewhere; the ordering core only needs enough to
// provision products and read them back.
type ProductStore struct{}

// NewProductStore creates a product repository.
func NewProductStore() *ProductStore {
	return &ProductStore{}
}

// Create inserts a product. ID, timestamps and status are filled in when
// unset.
func (ps *ProductStore) Create(ctx context.Context, q storage.Querier, p *domain.Product) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = domain.ProductActive
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO products (id, vendor_id, name, price, stock, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.VendorID, p.Name, p.Price.String(), p.Stock, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting product %s: %w", p.ID, err)
	}
	return nil
}

// GetByID loads a product regardless of status.
func (ps *ProductStore) GetByID(ctx context.Context, q storage.Querier, id string) (*domain.Product, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, vendor_id, name, price, stock, status, created_at, updated_at
		 FROM products WHERE id = ?`, id)

	var (
		p      domain.Product
		price  string
		status string
	)
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &price, &p.Stock, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("Product not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading product %s: %w", id, err)
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parsing price of product %s: %w", id, err)
	}
	p.Status = domain.ProductStatus(status)
	return &p, nil
}

// SetStatus flips a product between active and inactive.
func (ps *ProductStore) SetStatus(ctx context.Context, q storage.Querier, id string, status domain.ProductStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE products SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating product %s status: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating product %s status: %w", id, err)
	}
	if affected == 0 {
		return domain.NotFound("Product not found")
	}
	return nil
}
