package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// HTTP API
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8085"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/provisiond.db"`

	// Atheme IRC services JSON-RPC (optional; IRC integration is disabled when unset)
	AthemeURL      string        `env:"ATHEME_RPC_URL"` // e.g., https://services.atl.chat/jsonrpc
	AthemeSourceIP string        `env:"ATHEME_SOURCE_IP" envDefault:"127.0.0.1"`
	AthemeTimeout  time.Duration `env:"ATHEME_TIMEOUT" envDefault:"15s"`

	// Prosody account-management API (optional; XMPP integration is disabled when unset)
	ProsodyURL         string `env:"PROSODY_API_URL"` // e.g., https://xmpp.atl.chat:5281
	ProsodyUser        string `env:"PROSODY_API_USER"`
	ProsodyPassword    string `env:"PROSODY_API_PASSWORD"`
	ProsodyDomain      string `env:"PROSODY_DOMAIN"` // JID domain for provisioned users
	ProsodyInsecureTLS bool   `env:"PROSODY_INSECURE_TLS" envDefault:"false"`

	// Operator alerts for consistency failures (optional)
	AlertTelegramToken  string `env:"ALERT_TELEGRAM_TOKEN"`
	AlertTelegramChatID int64  `env:"ALERT_TELEGRAM_CHAT_ID"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// AthemeEnabled returns true if the IRC services endpoint is configured
func (c *Config) AthemeEnabled() bool {
	return c.AthemeURL != ""
}

// ProsodyEnabled returns true if the XMPP management API is configured
func (c *Config) ProsodyEnabled() bool {
	return c.ProsodyURL != "" && c.ProsodyDomain != ""
}

// AlertsEnabled returns true if the telegram alert sink is configured
func (c *Config) AlertsEnabled() bool {
	return c.AlertTelegramToken != "" && c.AlertTelegramChatID != 0
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.AthemeTimeout <= 0 {
		return nil, fmt.Errorf("ATHEME_TIMEOUT must be positive, got %s", cfg.AthemeTimeout)
	}

	return cfg, nil
}
