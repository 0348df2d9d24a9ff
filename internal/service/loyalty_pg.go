package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aquapure/waterbot/internal/models"
)

// PGLoyaltyLedger is the Postgres-backed LoyaltyLedger. The balance is the
// sum of signed ledger rows; no separate counter is kept.
type PGLoyaltyLedger struct {
	db *sqlx.DB
}

// NewPGLoyaltyLedger wires a LoyaltyLedger onto an open connection pool.
func NewPGLoyaltyLedger(db *sqlx.DB) *PGLoyaltyLedger {
	return &PGLoyaltyLedger{db: db}
}

// Balance returns the user's current point balance.
func (s *PGLoyaltyLedger) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'credit' THEN points ELSE -points END), 0)
		FROM loyalty_transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("loyalty balance: %w", err)
	}
	return balance, nil
}

// Credit appends a credit row.
func (s *PGLoyaltyLedger) Credit(ctx context.Context, userID int64, orderID *int64, points int64, reason string) error {
	if points <= 0 {
		return Validatef("points", "credit must be positive, got %d", points)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loyalty_transactions (user_id, order_id, points, kind, reason)
		VALUES ($1, $2, $3, 'credit', $4)`, userID, orderID, points, reason)
	if err != nil {
		return fmt.Errorf("loyalty credit: %w", err)
	}
	return nil
}

// Debit appends a debit row. The balance check and the insert share one
// transaction so concurrent debits cannot overdraw.
func (s *PGLoyaltyLedger) Debit(ctx context.Context, userID int64, orderID *int64, points int64, reason string) error {
	if points <= 0 {
		return Validatef("points", "debit must be positive, got %d", points)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("loyalty debit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize debits per user by locking the owner row.
	if _, err := tx.ExecContext(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		return fmt.Errorf("loyalty debit: lock user: %w", err)
	}
	var balance int64
	err = tx.GetContext(ctx, &balance, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'credit' THEN points ELSE -points END), 0)
		FROM loyalty_transactions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("loyalty debit: balance: %w", err)
	}
	if balance < points {
		return &PaymentError{
			Method: string(models.PayLoyalty),
			Reason: fmt.Sprintf("insufficient points: have %d, need %d", balance, points),
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO loyalty_transactions (user_id, order_id, points, kind, reason)
		VALUES ($1, $2, $3, 'debit', $4)`, userID, orderID, points, reason)
	if err != nil {
		return fmt.Errorf("loyalty debit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("loyalty debit: %w", err)
	}
	return nil
}

// History returns recent ledger rows, newest first.
func (s *PGLoyaltyLedger) History(ctx context.Context, userID int64, limit int) ([]models.LoyaltyTransaction, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []models.LoyaltyTransaction
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM loyalty_transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loyalty history: %w", err)
	}
	return out, nil
}
