package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/aquapure/waterbot/internal/models"
)

// PGCatalog is the Postgres-backed ProductCatalog.
type PGCatalog struct {
	db *sqlx.DB
}

// NewPGCatalog wires a ProductCatalog onto an open connection pool.
func NewPGCatalog(db *sqlx.DB) *PGCatalog {
	return &PGCatalog{db: db}
}

// ListActive returns sellable products ordered by id.
func (s *PGCatalog) ListActive(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM products WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

// Get returns a product or nil when unknown.
func (s *PGCatalog) Get(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := s.db.GetContext(ctx, &p, `SELECT * FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// Reserve decrements stock for every product in one transaction. Products are
// locked in ascending id order so concurrent reservations cannot deadlock.
func (s *PGCatalog) Reserve(ctx context.Context, quantities map[int64]int) error {
	if len(quantities) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		qty := quantities[id]
		var p models.Product
		err := tx.GetContext(ctx, &p, `SELECT * FROM products WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return &StockError{ProductID: id, Requested: qty}
		}
		if err != nil {
			return fmt.Errorf("reserve stock: lock product %d: %w", id, err)
		}
		if !p.Active || p.Stock < qty {
			return &StockError{ProductID: id, Name: p.Name, Requested: qty, Available: p.Stock}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock - $1 WHERE id = $2`, qty, id); err != nil {
			return fmt.Errorf("reserve stock: decrement product %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	return nil
}

// Release returns reserved stock after a cancelled pending order.
func (s *PGCatalog) Release(ctx context.Context, quantities map[int64]int) error {
	for id, qty := range quantities {
		if _, err := s.db.ExecContext(ctx, `UPDATE products SET stock = stock + $1 WHERE id = $2`, qty, id); err != nil {
			return fmt.Errorf("release stock: product %d: %w", id, err)
		}
	}
	return nil
}
