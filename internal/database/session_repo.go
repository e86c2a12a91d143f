package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/allthingslinux/provisiond/pkg/models"
)

// GetSession returns a session by token
func (db *DB) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	query := `SELECT * FROM sessions WHERE token = ?`
	err := db.GetContext(ctx, &session, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// CreateSession inserts a session row
func (db *DB) CreateSession(ctx context.Context, session *models.Session) error {
	query := `INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`
	_, err := db.ExecContext(ctx, query, session.Token, session.UserID, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}
