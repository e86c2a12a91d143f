// Package integration implements the provisioning lifecycle for accounts on
// external chat networks. Each integration composes an identifier validator,
// a remote account client and the local store, with explicit compensating
// actions instead of transactions: no two-phase commit spans the database and
// a remote network service, so each creation and deletion path is an ordered
// sequence of steps with a defined rollback (or a surfaced, alerted
// inconsistency) per step.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/allthingslinux/provisiond/internal/alerting"
	"github.com/allthingslinux/provisiond/internal/database"
	"github.com/allthingslinux/provisiond/pkg/models"
)

// CreateInput is the creation payload
type CreateInput struct {
	// Identifier is the desired network-visible name. Required for IRC;
	// optional for XMPP, where it defaults to a name derived from the
	// user's email local-part.
	Identifier string `json:"identifier,omitempty"`
}

// UpdateInput is a partial update. Only status and metadata are mutable.
type UpdateInput struct {
	Status     *string         `json:"status,omitempty"`
	Metadata   models.Metadata `json:"metadata,omitempty"`
	Identifier *string         `json:"identifier,omitempty"` // rejected when it differs from the stored name
}

// CreateResult is the outcome of a successful creation
type CreateResult struct {
	Account *models.IntegrationAccount `json:"account"`
	// Secret is a one-time credential generated to satisfy the remote
	// network's registration protocol. Never persisted; empty for networks
	// that do not hand one out.
	Secret string `json:"secret,omitempty"`
}

// PublicInfo is the projection of an integration safe to expose to any caller
type PublicInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// Integration is the uniform lifecycle contract every provisioning backend
// implements
type Integration interface {
	ID() string
	Name() string
	Description() string
	Enabled() bool

	CreateAccount(ctx context.Context, userID int64, input CreateInput) (*CreateResult, error)
	GetAccount(ctx context.Context, userID int64) (*models.IntegrationAccount, error)
	GetAccountByID(ctx context.Context, accountID string) (*models.IntegrationAccount, error)
	UpdateAccount(ctx context.Context, accountID string, input UpdateInput) (*models.IntegrationAccount, error)
	DeleteAccount(ctx context.Context, accountID string) error
}

// base carries the pieces every integration shares and implements the
// operations whose logic does not differ between networks.
type base struct {
	id          string
	name        string
	description string
	enabled     bool

	db      *database.DB
	alerter alerting.Alerter
	logger  *slog.Logger
}

func (b *base) ID() string          { return b.id }
func (b *base) Name() string        { return b.name }
func (b *base) Description() string { return b.description }
func (b *base) Enabled() bool       { return b.enabled }

// GetAccount returns the user's live account, or ErrNotFound
func (b *base) GetAccount(ctx context.Context, userID int64) (*models.IntegrationAccount, error) {
	account, err := b.db.GetAccountByUser(ctx, b.id, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return account, err
}

// GetAccountByID returns an account by id, including soft-deleted ones
func (b *base) GetAccountByID(ctx context.Context, accountID string) (*models.IntegrationAccount, error) {
	account, err := b.db.GetAccountByID(ctx, accountID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if account.Integration != b.id {
		return nil, ErrNotFound
	}
	return account, nil
}

// UpdateAccount mutates status and/or metadata. The identifier is immutable:
// the remote networks have no safe rename primitive for unauthenticated
// callers, so a different name requires delete-and-recreate.
func (b *base) UpdateAccount(ctx context.Context, accountID string, input UpdateInput) (*models.IntegrationAccount, error) {
	account, err := b.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.IsDeleted() {
		return nil, ErrNotFound
	}

	if input.Identifier != nil && *input.Identifier != account.Identifier {
		return nil, ErrIdentifierImmutable
	}

	changed := false
	if input.Status != nil && *input.Status != account.Status {
		if !models.ValidStatus(*input.Status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *input.Status)
		}
		if err := b.db.UpdateAccountStatus(ctx, accountID, *input.Status); err != nil {
			return nil, fmt.Errorf("failed to update status: %w", err)
		}
		changed = true
	}
	if input.Metadata != nil {
		if err := b.db.UpdateAccountMetadata(ctx, accountID, input.Metadata); err != nil {
			return nil, fmt.Errorf("failed to update metadata: %w", err)
		}
		changed = true
	}
	if !changed {
		return nil, ErrNoChanges
	}

	return b.GetAccountByID(ctx, accountID)
}

// deleteWith implements the shared deletion protocol. remoteDelete removes
// the account from the network and must return nil when the account is
// already absent remotely, so deletion stays idempotent. Any other remote
// error aborts before local state is touched: the local row then still
// accurately says the account exists remotely.
func (b *base) deleteWith(ctx context.Context, accountID string, remoteDelete func(ctx context.Context, identifier string) error) error {
	account, err := b.db.GetAccountByID(ctx, accountID)
	if errors.Is(err, database.ErrNotFound) {
		return nil // idempotent: absent means deleted
	}
	if err != nil {
		return err
	}
	if account.Integration != b.id {
		return nil
	}
	if account.IsDeleted() {
		return nil
	}

	if err := remoteDelete(ctx, account.Identifier); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteCleanup, err)
	}

	if err := b.db.UpdateAccountStatus(ctx, accountID, models.StatusDeleted); err != nil {
		// Remote account is gone but the local row still looks live.
		b.alerter.ConsistencyFailure(ctx, alerting.Event{
			Integration: b.id,
			UserID:      account.UserID,
			Identifier:  account.Identifier,
			Detail:      "remote account deleted but local soft-delete failed",
		})
		return fmt.Errorf("%w: %v", ErrLocalPersist, err)
	}

	b.logger.Info("account deleted",
		"integration", b.id,
		"user_id", account.UserID,
		"identifier", account.Identifier)
	return nil
}
