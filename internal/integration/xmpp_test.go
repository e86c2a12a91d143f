package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allthingslinux/provisiond/internal/prosody"
	"github.com/allthingslinux/provisiond/pkg/models"
)

func newTestXMPP(t *testing.T) (*XMPP, *fakeXMPPClient, *recordingAlerter) {
	t.Helper()
	client := &fakeXMPPClient{}
	alerter := &recordingAlerter{}
	return NewXMPP(newTestDB(t), client, alerter, testLogger()), client, alerter
}

func TestXMPPCreateWithExplicitUsername(t *testing.T) {
	xmpp, client, _ := newTestXMPP(t)
	ctx := context.Background()
	user := seedUser(t, xmpp.db, "a@example.com")

	result, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{Identifier: "wonderland"})
	require.NoError(t, err)

	assert.Equal(t, "wonderland", result.Account.Identifier)
	assert.Equal(t, models.StatusActive, result.Account.Status)
	assert.Equal(t, "wonderland@chat.example.com", result.Account.Metadata["jid"])
	assert.Empty(t, result.Secret)
	assert.Equal(t, []string{"wonderland"}, client.created)
}

func TestXMPPCreateDerivesUsernameFromEmail(t *testing.T) {
	xmpp, client, _ := newTestXMPP(t)
	ctx := context.Background()
	user := seedUser(t, xmpp.db, "Alice+news@example.com")

	result, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{})
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Account.Identifier)
	assert.Equal(t, []string{"alice"}, client.created)
}

func TestXMPPCreateDerivationFailure(t *testing.T) {
	xmpp, client, _ := newTestXMPP(t)
	ctx := context.Background()
	user := seedUser(t, xmpp.db, "!!!@example.com")

	_, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{})
	assert.ErrorIs(t, err, ErrIdentifierNotDerivable)
	assert.Empty(t, client.created)
}

func TestXMPPCreateInvalidUsername(t *testing.T) {
	xmpp, _, _ := newTestXMPP(t)
	ctx := context.Background()
	user := seedUser(t, xmpp.db, "a@example.com")

	_, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{Identifier: "Not Valid"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestXMPPCreateDuplicateUsername(t *testing.T) {
	xmpp, _, _ := newTestXMPP(t)
	ctx := context.Background()
	alice := seedUser(t, xmpp.db, "a@example.com")
	bob := seedUser(t, xmpp.db, "b@example.com")

	_, err := xmpp.CreateAccount(ctx, alice.ID, CreateInput{Identifier: "bob"})
	require.NoError(t, err)

	_, err = xmpp.CreateAccount(ctx, bob.ID, CreateInput{Identifier: "bob"})
	assert.ErrorIs(t, err, ErrIdentifierTaken)

	// No second row appeared
	_, err = xmpp.GetAccount(ctx, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestXMPPCreateUsernameTakenRemotely(t *testing.T) {
	xmpp, client, _ := newTestXMPP(t)
	ctx := context.Background()
	user := seedUser(t, xmpp.db, "a@example.com")
	client.existing = map[string]bool{"bob": true}

	_, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{Identifier: "bob"})
	assert.ErrorIs(t, err, ErrIdentifierTaken)
	assert.Empty(t, client.created)
}

func TestXMPPCreateRemoteFailure(t *testing.T) {
	xmpp, _, _ := newTestXMPP(t)
	ctx := context.Background()
	user := seedUser(t, xmpp.db, "a@example.com")

	t.Run("remote says exists", func(t *testing.T) {
		xmpp.client.(*fakeXMPPClient).createErr = prosody.ErrUserExists
		_, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{Identifier: "bob"})
		assert.ErrorIs(t, err, ErrIdentifierTaken)
	})

	t.Run("opaque remote failure", func(t *testing.T) {
		xmpp.client.(*fakeXMPPClient).createErr = errors.New("api down")
		_, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{Identifier: "bob"})
		assert.ErrorIs(t, err, ErrRemoteRegistration)
	})

	// Neither attempt left a local row behind
	_, err := xmpp.GetAccount(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// A local insert failure after the remote account was created must trigger a
// best-effort remote delete and still fail the operation.
func TestXMPPCreateCompensatesOnLocalFailure(t *testing.T) {
	xmpp, client, _ := newTestXMPP(t)
	ctx := context.Background()
	alice := seedUser(t, xmpp.db, "a@example.com")
	bob := seedUser(t, xmpp.db, "b@example.com")

	_, err := xmpp.CreateAccount(ctx, alice.ID, CreateInput{Identifier: "shared"})
	require.NoError(t, err)

	// The fake remote does not know the name is taken, so the create
	// proceeds to the local insert and hits the unique index.
	_, err = xmpp.CreateAccount(ctx, bob.ID, CreateInput{Identifier: "shared"})
	assert.ErrorIs(t, err, ErrIdentifierTaken)

	// Best-effort cleanup of the just-created remote account was attempted
	assert.Equal(t, []string{"shared"}, client.deleted)

	_, err = xmpp.GetAccount(ctx, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestXMPPCreateLocalFailureSwallowsCleanupError(t *testing.T) {
	xmpp, client, alerter := newTestXMPP(t)
	ctx := context.Background()
	alice := seedUser(t, xmpp.db, "a@example.com")
	bob := seedUser(t, xmpp.db, "b@example.com")

	_, err := xmpp.CreateAccount(ctx, alice.ID, CreateInput{Identifier: "shared"})
	require.NoError(t, err)

	client.deleteErr = errors.New("api down")
	_, err = xmpp.CreateAccount(ctx, bob.ID, CreateInput{Identifier: "shared"})
	assert.ErrorIs(t, err, ErrIdentifierTaken)

	// The failed compensation surfaced to the operator sink, not the caller
	events := alerter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "xmpp", events[0].Integration)
	assert.Equal(t, "shared", events[0].Identifier)
}

func TestXMPPDeleteIdempotent(t *testing.T) {
	xmpp, client, _ := newTestXMPP(t)
	ctx := context.Background()
	user := seedUser(t, xmpp.db, "a@example.com")

	result, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{Identifier: "bob"})
	require.NoError(t, err)

	require.NoError(t, xmpp.DeleteAccount(ctx, result.Account.ID))
	assert.Equal(t, []string{"bob"}, client.deleted)
	require.NoError(t, xmpp.DeleteAccount(ctx, result.Account.ID))
	assert.Len(t, client.deleted, 1)

	stored, err := xmpp.GetAccountByID(ctx, result.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, stored.Status)
}

func TestXMPPDeleteRemoteAbsenceIsBenign(t *testing.T) {
	xmpp, client, _ := newTestXMPP(t)
	ctx := context.Background()
	user := seedUser(t, xmpp.db, "a@example.com")

	result, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{Identifier: "bob"})
	require.NoError(t, err)

	client.deleteErr = prosody.ErrUserNotFound
	require.NoError(t, xmpp.DeleteAccount(ctx, result.Account.ID))

	stored, err := xmpp.GetAccountByID(ctx, result.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, stored.Status)
}

func TestXMPPDeleteAbortsOnRemoteError(t *testing.T) {
	xmpp, client, _ := newTestXMPP(t)
	ctx := context.Background()
	user := seedUser(t, xmpp.db, "a@example.com")

	result, err := xmpp.CreateAccount(ctx, user.ID, CreateInput{Identifier: "bob"})
	require.NoError(t, err)

	client.deleteErr = errors.New("api down")
	err = xmpp.DeleteAccount(ctx, result.Account.ID)
	assert.ErrorIs(t, err, ErrRemoteCleanup)

	stored, err := xmpp.GetAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, stored.Status)
}
