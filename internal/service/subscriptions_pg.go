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

// PGSubscriptionStore is the Postgres-backed SubscriptionStore.
type PGSubscriptionStore struct {
	db *sqlx.DB
}

// NewPGSubscriptionStore wires a SubscriptionStore onto an open connection pool.
func NewPGSubscriptionStore(db *sqlx.DB) *PGSubscriptionStore {
	return &PGSubscriptionStore{db: db}
}

// Create inserts a subscription.
func (s *PGSubscriptionStore) Create(ctx context.Context, sub *models.Subscription) error {
	const query = `
		INSERT INTO subscriptions (user_id, product_id, product_name, quantity, frequency_days, next_delivery, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := s.db.QueryRowxContext(ctx, query,
		sub.UserID, sub.ProductID, sub.ProductName, sub.Quantity,
		sub.FrequencyDays, sub.NextDelivery, sub.Status).
		Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// ByID returns a subscription or nil when unknown.
func (s *PGSubscriptionStore) ByID(ctx context.Context, id int64) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.GetContext(ctx, &sub, `SELECT * FROM subscriptions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

// ListByUser returns the user's subscriptions, newest first.
func (s *PGSubscriptionStore) ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	var out []models.Subscription
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return out, nil
}

// UpdateStatus pauses, resumes or cancels a subscription.
func (s *PGSubscriptionStore) UpdateStatus(ctx context.Context, id int64, st models.SubscriptionStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subscriptions SET status = $1 WHERE id = $2`, st, id)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subscription %d not found", id)
	}
	return nil
}

// DueBefore returns active subscriptions whose next delivery date has passed.
func (s *PGSubscriptionStore) DueBefore(ctx context.Context, cutoff time.Time) ([]models.Subscription, error) {
	var out []models.Subscription
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM subscriptions
		WHERE status = $1 AND next_delivery <= $2
		ORDER BY next_delivery`, models.SubActive, cutoff)
	if err != nil {
		return nil, fmt.Errorf("due subscriptions: %w", err)
	}
	return out, nil
}

// AdvanceNextDelivery moves a subscription's next delivery date forward.
func (s *PGSubscriptionStore) AdvanceNextDelivery(ctx context.Context, id int64, next time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET next_delivery = $1 WHERE id = $2`, next, id)
	if err != nil {
		return fmt.Errorf("advance subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subscription %d not found", id)
	}
	return nil
}
