// Package prosody is a client for the account-management API that fronts the
// XMPP server. The API provisions accounts by JID local-part; credential
// bootstrap (invite/reset) is owned by the chat server itself.
package prosody

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Typed outcomes callers distinguish. A dedicated not-found error lets the
// deletion flow treat a remotely absent account as benign.
var (
	ErrUserExists   = errors.New("xmpp account already exists")
	ErrUserNotFound = errors.New("xmpp account not found")
)

// Client is a client for the XMPP account-management API
type Client struct {
	baseURL    string
	username   string
	password   string
	domain     string
	httpClient *http.Client
}

// Config for the prosody client
type Config struct {
	BaseURL     string // e.g., https://xmpp.atl.chat:5281
	Username    string // admin API basic-auth user
	Password    string
	Domain      string // JID domain accounts are created under
	InsecureTLS bool   // skip certificate verification (self-signed deployments)
}

type apiError struct {
	Error string `json:"error"`
}

// NewClient creates a new account-management API client
func NewClient(cfg Config) *Client {
	transport := http.DefaultTransport
	if cfg.InsecureTLS {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		domain:   cfg.Domain,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// IsConfigured returns true if the management API is configured
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.domain != ""
}

// GetDomain returns the JID domain accounts are created under
func (c *Client) GetDomain() string {
	return c.domain
}

func (c *Client) do(ctx context.Context, method, username string, body io.Reader) (*http.Response, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("prosody not configured")
	}

	url := fmt.Sprintf("%s/accounts/%s/%s", c.baseURL, c.domain, username)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) string {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.Status
	}
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return strings.TrimSpace(string(body))
}

// CreateUser provisions an account for the given local-part
func (c *Client) CreateUser(ctx context.Context, username string) error {
	resp, err := c.do(ctx, http.MethodPut, username, strings.NewReader("{}"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrUserExists
	default:
		return fmt.Errorf("API error: %s (status %d)", decodeError(resp), resp.StatusCode)
	}
}

// UserExists checks whether an account exists for the given local-part
func (c *Client) UserExists(ctx context.Context, username string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, username, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("API error: %s (status %d)", decodeError(resp), resp.StatusCode)
	}
}

// DeleteUser removes an account. ErrUserNotFound is returned when the account
// does not exist remotely.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	resp, err := c.do(ctx, http.MethodDelete, username, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrUserNotFound
	default:
		return fmt.Errorf("API error: %s (status %d)", decodeError(resp), resp.StatusCode)
	}
}
