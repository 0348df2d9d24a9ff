package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aquapure/waterbot/internal/models"
)

// PGUserStore is the Postgres-backed UserStore.
type PGUserStore struct {
	db *sqlx.DB
}

// NewPGUserStore wires a UserStore onto an open connection pool.
func NewPGUserStore(db *sqlx.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

// Upsert inserts the user or refreshes the mutable Telegram profile fields.
func (s *PGUserStore) Upsert(ctx context.Context, u *models.User) error {
	const query = `
		INSERT INTO users (telegram_id, username, first_name, language_code, last_activity)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    language_code = EXCLUDED.language_code,
		    last_activity = now()
		RETURNING id, created_at`
	err := s.db.QueryRowxContext(ctx, query, u.TelegramID, u.Username, u.FirstName, u.LanguageCode).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// ByTelegramID returns the user or nil when unknown.
func (s *PGUserStore) ByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}
	return &u, nil
}

// TelegramIDByID maps an internal user id to its Telegram chat id.
func (s *PGUserStore) TelegramIDByID(ctx context.Context, userID int64) (int64, error) {
	var telegramID int64
	err := s.db.GetContext(ctx, &telegramID, `SELECT telegram_id FROM users WHERE id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("get telegram id: %w", err)
	}
	return telegramID, nil
}

// SetPhone stores the phone shared via the contact button.
func (s *PGUserStore) SetPhone(ctx context.Context, telegramID int64, phone string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET phone = $1 WHERE telegram_id = $2`, phone, telegramID)
	if err != nil {
		return fmt.Errorf("set phone: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d not found", telegramID)
	}
	return nil
}

// TouchActivity advances last_activity for the user.
func (s *PGUserStore) TouchActivity(ctx context.Context, telegramID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_activity = now() WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	return nil
}
