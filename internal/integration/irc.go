package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/allthingslinux/provisiond/internal/alerting"
	"github.com/allthingslinux/provisiond/internal/atheme"
	"github.com/allthingslinux/provisiond/internal/database"
	"github.com/allthingslinux/provisiond/internal/identifier"
	"github.com/allthingslinux/provisiond/pkg/models"
)

const ircSecretLength = 24

// IRCClient is the slice of the services client the IRC integration consumes
type IRCClient interface {
	IsConfigured() bool
	Register(ctx context.Context, nick, password, email string) error
	IsRegistered(ctx context.Context, nick string) (bool, error)
	Drop(ctx context.Context, nick string) error
}

// IRC provisions NickServ accounts on the IRC network through the Atheme
// services daemon.
type IRC struct {
	base
	client IRCClient
}

// NewIRC creates the IRC integration. It is enabled when the services
// endpoint is configured.
func NewIRC(db *database.DB, client IRCClient, alerter alerting.Alerter, logger *slog.Logger) *IRC {
	return &IRC{
		base: base{
			id:          "irc",
			name:        "IRC",
			description: "Account on the community IRC network, registered with NickServ",
			enabled:     client.IsConfigured(),
			db:          db,
			alerter:     alerter,
			logger:      logger.With("integration", "irc"),
		},
		client: client,
	}
}

// CreateAccount registers a nick. The local row is inserted in pending status
// before the remote call, so a crash in between leaves a visible trace
// instead of a silent orphan; a remote failure rolls the pending row back.
func (i *IRC) CreateAccount(ctx context.Context, userID int64, input CreateInput) (*CreateResult, error) {
	if !i.enabled {
		return nil, ErrDisabled
	}

	nick := input.Identifier
	if nick == "" {
		return nil, fmt.Errorf("%w: a nick is required", ErrInvalidIdentifier)
	}
	if err := identifier.ValidateNick(nick); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIdentifier, err)
	}

	// Advisory pre-checks; the unique indexes are the real authority
	if _, err := i.db.GetAccountByUser(ctx, i.id, userID); err == nil {
		return nil, ErrAlreadyHasAccount
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if _, err := i.db.GetAccountByIdentifier(ctx, i.id, nick); err == nil {
		return nil, ErrIdentifierTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	registered, err := i.client.IsRegistered(ctx, nick)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteRegistration, err)
	}
	if registered {
		return nil, ErrIdentifierTaken
	}

	user, err := i.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// One-time secret to satisfy NickServ; the portal authenticates users
	// through its own sessions, so this is never stored or shown again
	// beyond the creation response.
	secret, err := atheme.GenerateSecret(ircSecretLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	account := &models.IntegrationAccount{
		ID:          uuid.NewString(),
		Integration: i.id,
		UserID:      userID,
		Identifier:  nick,
		Status:      models.StatusPending,
	}
	if err := i.db.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			return nil, ErrIdentifierTaken
		}
		return nil, err
	}

	if err := i.client.Register(ctx, nick, secret, user.Email); err != nil {
		// Compensate: remove the pending row so the nick stays available.
		// If even the removal fails the row stays pending, which is the
		// designed recoverable trace.
		if rbErr := i.db.RemoveAccount(ctx, account.ID); rbErr != nil {
			i.logger.Error("failed to roll back pending account",
				"account_id", account.ID, "nick", nick, "error", rbErr)
		}

		switch {
		case errors.Is(err, atheme.ErrNickExists):
			return nil, ErrIdentifierTaken
		case errors.Is(err, atheme.ErrBadParams):
			return nil, fmt.Errorf("%w: the network rejected this nick", ErrInvalidIdentifier)
		case errors.Is(err, atheme.ErrRateLimited):
			return nil, fmt.Errorf("%w: registration is rate limited, try again later", ErrRemoteRegistration)
		default:
			i.logger.Error("nick registration failed", "nick", nick, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrRemoteRegistration, err)
		}
	}

	if err := i.db.UpdateAccountStatus(ctx, account.ID, models.StatusActive); err != nil {
		// The nick now exists on the network with no active local record.
		// Atheme offers no unauthenticated unregister, so this orphan is
		// surfaced for manual reconciliation rather than cleaned up.
		i.logger.Error("account orphaned: remote registration succeeded but local activation failed",
			"account_id", account.ID, "nick", nick, "error", err)
		i.alerter.ConsistencyFailure(ctx, alerting.Event{
			Integration: i.id,
			UserID:      userID,
			Identifier:  nick,
			Detail:      "nick registered with NickServ but the local row could not be activated",
		})
		return nil, ErrAccountOrphaned
	}
	account.Status = models.StatusActive

	i.logger.Info("account created", "user_id", userID, "nick", nick)
	return &CreateResult{Account: account, Secret: secret}, nil
}

// DeleteAccount drops the nick and soft-deletes the local row. A nick that is
// already gone remotely is treated as deleted.
func (i *IRC) DeleteAccount(ctx context.Context, accountID string) error {
	if !i.enabled {
		return ErrDisabled
	}
	return i.deleteWith(ctx, accountID, func(ctx context.Context, nick string) error {
		err := i.client.Drop(ctx, nick)
		if errors.Is(err, atheme.ErrNickNotFound) {
			return nil
		}
		return err
	})
}
