// Package atheme is a client for the JSON-RPC interface of the Atheme IRC
// services daemon. Only the nick lifecycle commands the portal needs are
// wrapped; every call is a single unauthenticated atheme.command request.
package atheme

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"
)

// Atheme fault codes (doc/XMLRPC in the atheme distribution)
const (
	faultNeedMoreParams = 1
	faultBadParams      = 2
	faultNoSuchSource   = 3
	faultNoSuchTarget   = 4
	faultAuthFail       = 5
	faultNoPrivs        = 6
	faultNoSuchKey      = 7
	faultAlreadyExists  = 8
	faultTooMany        = 9
	faultEmailFail      = 10
)

// Typed outcomes for the fault categories callers distinguish. Everything
// else, including timeouts, surfaces as an opaque *FaultError or wrapped
// transport error.
var (
	ErrNickExists   = errors.New("nick is already registered")
	ErrBadParams    = errors.New("services rejected the command parameters")
	ErrRateLimited  = errors.New("services rate limit exceeded")
	ErrNickNotFound = errors.New("nick is not registered")
)

// FaultError is an unrecognized services fault
type FaultError struct {
	Code    int
	Message string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("services fault %d: %s", e.Code, e.Message)
}

// Client is an Atheme JSON-RPC client
type Client struct {
	url        string
	sourceIP   string
	httpClient *http.Client
}

// Config for the Atheme client
type Config struct {
	URL      string // e.g., https://services.atl.chat/jsonrpc
	SourceIP string // reported to services as the originating address
	Timeout  time.Duration
}

type rpcRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     string   `json:"id"`
}

type rpcFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcFault `json:"error"`
	ID     string    `json:"id"`
}

// NewClient creates a new Atheme JSON-RPC client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:      cfg.URL,
		sourceIP: cfg.SourceIP,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsConfigured returns true if the services endpoint is configured
func (c *Client) IsConfigured() bool {
	return c.url != ""
}

// command issues a single atheme.command call as the given nick and returns
// the raw result string or a fault.
func (c *Client) command(ctx context.Context, nick, service, command string, params ...string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("atheme not configured")
	}

	// atheme.command(authcookie, account, sourceip, service, command, params...)
	// "*" stands for an unauthenticated caller.
	rpcParams := append([]string{"*", nick, c.sourceIP, service, command}, params...)
	body, err := json.Marshal(rpcRequest{
		Method: "atheme.command",
		Params: rpcParams,
		ID:     "1",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("services error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(respBody))
	}

	if rpcResp.Error != nil {
		return "", &FaultError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	return rpcResp.Result, nil
}

// Register registers a nick with NickServ using a one-time password and the
// owner's email address.
func (c *Client) Register(ctx context.Context, nick, password, email string) error {
	_, err := c.command(ctx, nick, "NickServ", "REGISTER", password, email)
	if err == nil {
		return nil
	}

	var fault *FaultError
	if errors.As(err, &fault) {
		switch fault.Code {
		case faultAlreadyExists:
			return ErrNickExists
		case faultNeedMoreParams, faultBadParams:
			return fmt.Errorf("%w: %s", ErrBadParams, fault.Message)
		case faultTooMany:
			return ErrRateLimited
		}
	}
	return err
}

// IsRegistered checks whether a nick is known to NickServ
func (c *Client) IsRegistered(ctx context.Context, nick string) (bool, error) {
	_, err := c.command(ctx, nick, "NickServ", "INFO", nick)
	if err == nil {
		return true, nil
	}

	var fault *FaultError
	if errors.As(err, &fault) && fault.Code == faultNoSuchTarget {
		return false, nil
	}
	return false, err
}

// Drop unregisters a nick. ErrNickNotFound is returned when the nick is not
// registered, so deletion flows can treat absence as benign.
func (c *Client) Drop(ctx context.Context, nick string) error {
	_, err := c.command(ctx, nick, "NickServ", "DROP", nick)
	if err == nil {
		return nil
	}

	var fault *FaultError
	if errors.As(err, &fault) {
		switch fault.Code {
		case faultNoSuchTarget:
			return ErrNickNotFound
		case faultTooMany:
			return ErrRateLimited
		}
	}
	return err
}

// GenerateSecret generates a cryptographically secure one-time password used
// to satisfy the NickServ registration requirement. It is never persisted.
func GenerateSecret(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	secret := make([]byte, length)
	for i := range secret {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		secret[i] = charset[num.Int64()]
	}

	return string(secret), nil
}
