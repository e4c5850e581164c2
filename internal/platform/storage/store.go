package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories take a Querier so the same methods run standalone or
// inside a transaction opened by WithTx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the SQLite database holding the four record collections:
// products, orders (with order_items as the embedded line-item rows),
// payments, and shipments. Multi-document atomicity for order creation
// and cancellation runs through WithTx.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at dbPath and
// applies the schema. WAL mode and a busy timeout keep concurrent
// request handlers from tripping over SQLite's single-writer model;
// _txlock=immediate makes WithTx transactions take the write lock up
// front so status-guard reads inside them cannot go stale.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			vendor_id TEXT NOT NULL,
			name TEXT NOT NULL,
			price TEXT NOT NULL,
			stock INTEGER NOT NULL CHECK (stock >= 0),
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_products_vendor ON products(vendor_id);

		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			total TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'Pending',
			ship_street TEXT NOT NULL,
			ship_city TEXT NOT NULL,
			ship_postal_code TEXT,
			ship_country TEXT NOT NULL,
			ship_phone TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);
		CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC);

		CREATE TABLE IF NOT EXISTS order_items (
			order_id TEXT NOT NULL REFERENCES orders(id),
			position INTEGER NOT NULL,
			product_id TEXT NOT NULL,
			vendor_id TEXT NOT NULL,
			name TEXT NOT NULL,
			unit_price TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			subtotal TEXT NOT NULL,
			PRIMARY KEY (order_id, position)
		);
		CREATE INDEX IF NOT EXISTS idx_order_items_vendor ON order_items(vendor_id);

		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			customer_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			method TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'Pending',
			transaction_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);

		CREATE TABLE IF NOT EXISTS shipments (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			vendor_id TEXT NOT NULL,
			tracking_number TEXT,
			status TEXT NOT NULL DEFAULT 'Preparing',
			shipped_at DATETIME,
			delivered_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_shipments_order ON shipments(order_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for non-transactional reads.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction, committing when fn returns nil
// and rolling back otherwise. Any error from fn aborts the whole unit:
// no partial stock decrement or half-created order ever persists.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
