package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/slots"
)

// PGOrderStore is the Postgres-backed OrderStore.
type PGOrderStore struct {
	db *sqlx.DB
}

// NewPGOrderStore wires an OrderStore onto an open connection pool.
func NewPGOrderStore(db *sqlx.DB) *PGOrderStore {
	return &PGOrderStore{db: db}
}

// Create inserts the order and its items in one transaction.
func (s *PGOrderStore) Create(ctx context.Context, o *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO orders (number, user_id, address_id, slot_date, slot_start_hour, slot_end_hour,
		                    base_amount, delivery_fee, total_amount, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRowxContext(ctx, query,
		o.Number, o.UserID, o.AddressID, o.SlotDate, o.SlotStartHour, o.SlotEndHour,
		o.BaseAmount, o.DeliveryFee, o.TotalAmount, o.PaymentMethod, o.Status).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO order_items (order_id, product_id, name, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			item.OrderID, item.ProductID, item.Name, item.UnitPrice, item.Quantity).
			Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// ByID returns an order with its items, or nil when unknown.
func (s *PGOrderStore) ByID(ctx context.Context, id int64) (*models.Order, error) {
	return s.fetch(ctx, `SELECT * FROM orders WHERE id = $1`, id)
}

// ByNumber returns an order with its items, or nil when unknown.
func (s *PGOrderStore) ByNumber(ctx context.Context, number string) (*models.Order, error) {
	return s.fetch(ctx, `SELECT * FROM orders WHERE number = $1`, number)
}

func (s *PGOrderStore) fetch(ctx context.Context, query string, arg any) (*models.Order, error) {
	var o models.Order
	err := s.db.GetContext(ctx, &o, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	err = s.db.SelectContext(ctx, &o.Items,
		`SELECT * FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	return &o, nil
}

// ListByUser returns the user's most recent orders without items.
func (s *PGOrderStore) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []models.Order
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// ListByStatus returns orders in one status, oldest first.
func (s *PGOrderStore) ListByStatus(ctx context.Context, st models.OrderStatus, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []models.Order
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM orders WHERE status = $1 ORDER BY created_at LIMIT $2`, st, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	return out, nil
}

// UpdateStatus moves an order to a new status.
func (s *PGOrderStore) UpdateStatus(ctx context.Context, id int64, st models.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, st, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %d not found", id)
	}
	return nil
}

// BookedSlotKeys returns the slot keys held by non-terminal orders in
// [from, to).
func (s *PGOrderStore) BookedSlotKeys(ctx context.Context, from, to time.Time) (map[string]struct{}, error) {
	rows := []struct {
		SlotDate      time.Time `db:"slot_date"`
		SlotStartHour int       `db:"slot_start_hour"`
		SlotEndHour   int       `db:"slot_end_hour"`
	}{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT slot_date, slot_start_hour, slot_end_hour FROM orders
		WHERE status NOT IN ($1, $2) AND slot_date >= $3 AND slot_date < $4`,
		models.OrderDelivered, models.OrderCancelled, from, to)
	if err != nil {
		return nil, fmt.Errorf("booked slots: %w", err)
	}
	out := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		out[slots.Key(r.SlotDate, r.SlotStartHour, r.SlotEndHour)] = struct{}{}
	}
	return out, nil
}
