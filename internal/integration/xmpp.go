package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/allthingslinux/provisiond/internal/alerting"
	"github.com/allthingslinux/provisiond/internal/database"
	"github.com/allthingslinux/provisiond/internal/identifier"
	"github.com/allthingslinux/provisiond/internal/prosody"
	"github.com/allthingslinux/provisiond/pkg/models"
)

// XMPPClient is the slice of the account-management API the XMPP integration
// consumes
type XMPPClient interface {
	IsConfigured() bool
	GetDomain() string
	CreateUser(ctx context.Context, username string) error
	UserExists(ctx context.Context, username string) (bool, error)
	DeleteUser(ctx context.Context, username string) error
}

// XMPP provisions accounts on the XMPP server through its companion
// account-management API.
type XMPP struct {
	base
	client XMPPClient
}

// NewXMPP creates the XMPP integration. It is enabled when the management
// API endpoint is configured.
func NewXMPP(db *database.DB, client XMPPClient, alerter alerting.Alerter, logger *slog.Logger) *XMPP {
	return &XMPP{
		base: base{
			id:          "xmpp",
			name:        "XMPP",
			description: "Account on the community XMPP server",
			enabled:     client.IsConfigured(),
			db:          db,
			alerter:     alerter,
			logger:      logger.With("integration", "xmpp"),
		},
		client: client,
	}
}

// resolveUsername returns the validated desired username, or one derived from
// the user's email local-part when none was given.
func (x *XMPP) resolveUsername(ctx context.Context, userID int64, input CreateInput) (string, error) {
	if input.Identifier != "" {
		if err := identifier.ValidateLocalpart(input.Identifier); err != nil {
			return "", fmt.Errorf("%w: %s", ErrInvalidIdentifier, err)
		}
		return input.Identifier, nil
	}

	user, err := x.db.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	username, err := identifier.FromEmail(user.Email)
	if err != nil {
		return "", ErrIdentifierNotDerivable
	}
	return username, nil
}

// CreateAccount provisions an XMPP account. Unlike IRC there is no pending
// state: the local row is written only after the remote creation succeeded,
// and a failed local write triggers a best-effort remote delete.
func (x *XMPP) CreateAccount(ctx context.Context, userID int64, input CreateInput) (*CreateResult, error) {
	if !x.enabled {
		return nil, ErrDisabled
	}

	if _, err := x.db.GetAccountByUser(ctx, x.id, userID); err == nil {
		return nil, ErrAlreadyHasAccount
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	username, err := x.resolveUsername(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	// Availability against both authorities; advisory, like the IRC checks
	if _, err := x.db.GetAccountByIdentifier(ctx, x.id, username); err == nil {
		return nil, ErrIdentifierTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	exists, err := x.client.UserExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteRegistration, err)
	}
	if exists {
		return nil, ErrIdentifierTaken
	}

	if err := x.client.CreateUser(ctx, username); err != nil {
		if errors.Is(err, prosody.ErrUserExists) {
			return nil, ErrIdentifierTaken
		}
		x.logger.Error("remote account creation failed", "username", username, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRemoteRegistration, err)
	}

	account := &models.IntegrationAccount{
		ID:          uuid.NewString(),
		Integration: x.id,
		UserID:      userID,
		Identifier:  username,
		Status:      models.StatusActive,
		Metadata: models.Metadata{
			"jid": username + "@" + x.client.GetDomain(),
		},
	}
	if err := x.db.CreateAccount(ctx, account); err != nil {
		// Best-effort compensation: try to remove the account we just
		// created remotely. A failure here is swallowed on purpose; the
		// alert below carries enough context for an operator to finish
		// the cleanup by hand.
		if delErr := x.client.DeleteUser(ctx, username); delErr != nil && !errors.Is(delErr, prosody.ErrUserNotFound) {
			x.logger.Warn("best-effort remote cleanup failed", "username", username, "error", delErr)
			x.alerter.ConsistencyFailure(ctx, alerting.Event{
				Integration: x.id,
				UserID:      userID,
				Identifier:  username,
				Detail:      "xmpp account created remotely, local insert failed, remote cleanup failed",
			})
		}

		if errors.Is(err, database.ErrAlreadyExists) {
			return nil, ErrIdentifierTaken
		}
		x.logger.Error("local insert failed after remote creation", "username", username, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLocalPersist, err)
	}

	x.logger.Info("account created", "user_id", userID, "username", username)
	return &CreateResult{Account: account}, nil
}

// DeleteAccount removes the account from the server and soft-deletes the
// local row. An account already absent remotely is treated as deleted.
func (x *XMPP) DeleteAccount(ctx context.Context, accountID string) error {
	if !x.enabled {
		return ErrDisabled
	}
	return x.deleteWith(ctx, accountID, func(ctx context.Context, username string) error {
		err := x.client.DeleteUser(ctx, username)
		if errors.Is(err, prosody.ErrUserNotFound) {
			return nil
		}
		return err
	})
}
