package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aquapure/waterbot/internal/models"
)

// PGAddressBook is the Postgres-backed AddressBook.
type PGAddressBook struct {
	db *sqlx.DB
}

// NewPGAddressBook wires an AddressBook onto an open connection pool.
func NewPGAddressBook(db *sqlx.DB) *PGAddressBook {
	return &PGAddressBook{db: db}
}

// ListByUser returns addresses newest first, default first.
func (s *PGAddressBook) ListByUser(ctx context.Context, userID int64) ([]models.Address, error) {
	var out []models.Address
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return out, nil
}

// Get returns an address or nil when unknown.
func (s *PGAddressBook) Get(ctx context.Context, id int64) (*models.Address, error) {
	var a models.Address
	err := s.db.GetContext(ctx, &a, `SELECT * FROM addresses WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	return &a, nil
}

// Create stores a new address. The first address of a user becomes default.
func (s *PGAddressBook) Create(ctx context.Context, a *models.Address) error {
	const query = `
		INSERT INTO addresses (user_id, label, line, city, latitude, longitude, has_coords, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
		        NOT EXISTS (SELECT 1 FROM addresses WHERE user_id = $1))
		RETURNING id, is_default, created_at`
	err := s.db.QueryRowxContext(ctx, query,
		a.UserID, a.Label, a.Line, a.City, a.Latitude, a.Longitude, a.HasCoords).
		Scan(&a.ID, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create address: %w", err)
	}
	return nil
}

// SetDefault marks one address default and clears the flag on the rest.
func (s *PGAddressBook) SetDefault(ctx context.Context, userID, addressID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set default address: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE addresses SET is_default = false WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("set default address: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE addresses SET is_default = true WHERE id = $1 AND user_id = $2`, addressID, userID)
	if err != nil {
		return fmt.Errorf("set default address: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("address %d not found for user %d", addressID, userID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set default address: %w", err)
	}
	return nil
}

// Default returns the user's default address, or nil when none is saved.
func (s *PGAddressBook) Default(ctx context.Context, userID int64) (*models.Address, error) {
	var a models.Address
	err := s.db.GetContext(ctx, &a,
		`SELECT * FROM addresses WHERE user_id = $1 AND is_default LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("default address: %w", err)
	}
	return &a, nil
}
