package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/allthingslinux/provisiond/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when an insert collides with a live row
var ErrAlreadyExists = errors.New("record already exists")

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// CreateAccount inserts a new integration account row. The partial unique
// indexes reject a second live row per (integration, user) or
// (integration, identifier), reported as ErrAlreadyExists.
func (db *DB) CreateAccount(ctx context.Context, account *models.IntegrationAccount) error {
	query := `
		INSERT INTO integration_accounts (id, integration, user_id, identifier, status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		account.ID,
		account.Integration,
		account.UserID,
		account.Identifier,
		account.Status,
		account.Metadata,
		now,
		now,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// GetAccountByID returns an account by its opaque id, regardless of status
func (db *DB) GetAccountByID(ctx context.Context, id string) (*models.IntegrationAccount, error) {
	var account models.IntegrationAccount
	query := `SELECT * FROM integration_accounts WHERE id = ?`
	err := db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetAccountByUser returns the user's live (non-deleted) account for an integration
func (db *DB) GetAccountByUser(ctx context.Context, integration string, userID int64) (*models.IntegrationAccount, error) {
	var account models.IntegrationAccount
	query := `SELECT * FROM integration_accounts WHERE integration = ? AND user_id = ? AND status != ?`
	err := db.GetContext(ctx, &account, query, integration, userID, models.StatusDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetAccountByIdentifier returns the live (non-deleted) account holding an identifier
func (db *DB) GetAccountByIdentifier(ctx context.Context, integration, identifier string) (*models.IntegrationAccount, error) {
	var account models.IntegrationAccount
	query := `SELECT * FROM integration_accounts WHERE integration = ? AND identifier = ? AND status != ?`
	err := db.GetContext(ctx, &account, query, integration, identifier, models.StatusDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// UpdateAccountStatus transitions an account to a new status
func (db *DB) UpdateAccountStatus(ctx context.Context, id, status string) error {
	query := `UPDATE integration_accounts SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAccountMetadata replaces the account's metadata bag
func (db *DB) UpdateAccountMetadata(ctx context.Context, id string, metadata models.Metadata) error {
	query := `UPDATE integration_accounts SET metadata = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, metadata, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update account metadata: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveAccount physically removes a row. Only the compensation path for a
// failed remote registration uses this, to roll a pending row back to absent;
// every other deletion is a soft delete via UpdateAccountStatus.
func (db *DB) RemoveAccount(ctx context.Context, id string) error {
	query := `DELETE FROM integration_accounts WHERE id = ?`
	_, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	return nil
}
