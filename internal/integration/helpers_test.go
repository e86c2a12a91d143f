package integration

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allthingslinux/provisiond/internal/alerting"
	"github.com/allthingslinux/provisiond/internal/database"
	"github.com/allthingslinux/provisiond/pkg/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	// A pooled second connection would see a different in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func seedUser(t *testing.T, db *database.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Role: models.RoleUser}
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingAlerter captures consistency events for assertions
type recordingAlerter struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (a *recordingAlerter) ConsistencyFailure(_ context.Context, event alerting.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAlerter) Events() []alerting.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]alerting.Event(nil), a.events...)
}

type ircRegistration struct {
	nick     string
	password string
	email    string
}

// fakeIRCClient implements IRCClient
type fakeIRCClient struct {
	unconfigured     bool
	registerErr      error
	dropErr          error
	remoteRegistered map[string]bool
	infoErr          error

	registered []ircRegistration
	dropped    []string
}

func (f *fakeIRCClient) IsConfigured() bool { return !f.unconfigured }

func (f *fakeIRCClient) IsRegistered(_ context.Context, nick string) (bool, error) {
	if f.infoErr != nil {
		return false, f.infoErr
	}
	return f.remoteRegistered[nick], nil
}

func (f *fakeIRCClient) Register(_ context.Context, nick, password, email string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, ircRegistration{nick: nick, password: password, email: email})
	return nil
}

func (f *fakeIRCClient) Drop(_ context.Context, nick string) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.dropped = append(f.dropped, nick)
	return nil
}

// fakeXMPPClient implements XMPPClient
type fakeXMPPClient struct {
	unconfigured bool
	createErr    error
	deleteErr    error
	existing     map[string]bool
	existsErr    error

	created []string
	deleted []string
}

func (f *fakeXMPPClient) IsConfigured() bool { return !f.unconfigured }
func (f *fakeXMPPClient) GetDomain() string  { return "chat.example.com" }

func (f *fakeXMPPClient) CreateUser(_ context.Context, username string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, username)
	return nil
}

func (f *fakeXMPPClient) UserExists(_ context.Context, username string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[username], nil
}

func (f *fakeXMPPClient) DeleteUser(_ context.Context, username string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, username)
	return nil
}
