package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aquapure/waterbot/internal/models"
)

// PGDeliveryStore is the Postgres-backed DeliveryStore.
type PGDeliveryStore struct {
	db *sqlx.DB
}

// NewPGDeliveryStore wires a DeliveryStore onto an open connection pool.
func NewPGDeliveryStore(db *sqlx.DB) *PGDeliveryStore {
	return &PGDeliveryStore{db: db}
}

// Schedule assigns the first courier with no overlapping delivery in the
// order's window. The courier row is locked so two confirmations cannot pick
// the same courier for the same window.
func (s *PGDeliveryStore) Schedule(ctx context.Context, o *models.Order) (*models.Delivery, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("schedule delivery: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var courierID int64
	err = tx.GetContext(ctx, &courierID, `
		SELECT u.id FROM users u
		WHERE u.is_courier
		  AND NOT EXISTS (
			SELECT 1 FROM deliveries d
			WHERE d.courier_id = u.id
			  AND d.status IN ($1, $2)
			  AND d.scheduled_date = $3
			  AND d.start_hour < $4 AND d.end_hour > $5
		  )
		ORDER BY u.id
		LIMIT 1
		FOR UPDATE OF u`,
		models.DeliveryScheduled, models.DeliveryEnRoute,
		o.SlotDate, o.SlotEndHour, o.SlotStartHour)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCourierAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("schedule delivery: pick courier: %w", err)
	}

	d := &models.Delivery{
		OrderID:       o.ID,
		CourierID:     courierID,
		ScheduledDate: o.SlotDate,
		StartHour:     o.SlotStartHour,
		EndHour:       o.SlotEndHour,
		Status:        models.DeliveryScheduled,
	}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO deliveries (order_id, courier_id, scheduled_date, start_hour, end_hour, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		d.OrderID, d.CourierID, d.ScheduledDate, d.StartHour, d.EndHour, d.Status).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("schedule delivery: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("schedule delivery: %w", err)
	}
	return d, nil
}

// ByOrder returns the delivery for an order, or nil when none is scheduled.
func (s *PGDeliveryStore) ByOrder(ctx context.Context, orderID int64) (*models.Delivery, error) {
	var d models.Delivery
	err := s.db.GetContext(ctx, &d, `SELECT * FROM deliveries WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return &d, nil
}

// UpdateStatus moves a delivery to a new status.
func (s *PGDeliveryStore) UpdateStatus(ctx context.Context, id int64, st models.DeliveryStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deliveries SET status = $1 WHERE id = $2`, st, id)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delivery %d not found", id)
	}
	return nil
}

// ListForCourier returns a courier's deliveries for one date, earliest first.
func (s *PGDeliveryStore) ListForCourier(ctx context.Context, courierID int64, date time.Time) ([]models.Delivery, error) {
	var out []models.Delivery
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM deliveries
		WHERE courier_id = $1 AND scheduled_date = $2
		ORDER BY start_hour`, courierID, date)
	if err != nil {
		return nil, fmt.Errorf("list courier deliveries: %w", err)
	}
	return out, nil
}
