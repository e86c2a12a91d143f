package atheme

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(Config{URL: ts.URL, SourceIP: "127.0.0.1"})
}

func faultResponse(code int, message string) string {
	return fmt.Sprintf(`{"result":"","error":{"code":%d,"message":"%s"},"id":"1"}`, code, message)
}

func TestRegisterSendsCommand(t *testing.T) {
	var got rpcRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"result":"Account registered.","error":null,"id":"1"}`)
	})

	err := client.Register(context.Background(), "alice", "s3cret", "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, "atheme.command", got.Method)
	assert.Equal(t, []string{"*", "alice", "127.0.0.1", "NickServ", "REGISTER", "s3cret", "a@example.com"}, got.Params)
}

func TestRegisterFaultMapping(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr error
	}{
		{"already exists", faultAlreadyExists, ErrNickExists},
		{"bad params", faultBadParams, ErrBadParams},
		{"need more params", faultNeedMoreParams, ErrBadParams},
		{"rate limited", faultTooMany, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, faultResponse(tt.code, "nope"))
			})
			err := client.Register(context.Background(), "alice", "s3cret", "a@example.com")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegisterUnrecognizedFault(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, faultResponse(faultEmailFail, "sendmail broke"))
	})

	err := client.Register(context.Background(), "alice", "s3cret", "a@example.com")
	require.Error(t, err)

	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, faultEmailFail, fault.Code)
}

func TestDropNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, faultResponse(faultNoSuchTarget, "no such account"))
	})

	err := client.Drop(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNickNotFound)
}

func TestIsRegistered(t *testing.T) {
	t.Run("registered", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"result":"Information on alice...","error":null,"id":"1"}`)
		})
		ok, err := client.IsRegistered(context.Background(), "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("not registered", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, faultResponse(faultNoSuchTarget, "not registered"))
		})
		ok, err := client.IsRegistered(context.Background(), "ghost")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUnconfiguredClient(t *testing.T) {
	client := NewClient(Config{})
	assert.False(t, client.IsConfigured())

	err := client.Register(context.Background(), "alice", "s3cret", "a@example.com")
	assert.Error(t, err)
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(24)
	require.NoError(t, err)
	b, err := GenerateSecret(24)
	require.NoError(t, err)

	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
}
