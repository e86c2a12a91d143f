package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Account statuses. Deleted rows are kept for audit purposes and excluded
// from the uniqueness constraints.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
)

// ValidStatus reports whether s is a status a caller may set.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusSuspended:
		return true
	}
	return false
}

// Metadata is an opaque key/value bag stored as JSON
type Metadata map[string]string

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
}

// IntegrationAccount represents a provisioned account on an external network
type IntegrationAccount struct {
	ID          string    `db:"id" json:"id"`
	Integration string    `db:"integration" json:"integration"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Identifier  string    `db:"identifier" json:"identifier"` // network-visible nick or username, immutable
	Status      string    `db:"status" json:"status"`
	Metadata    Metadata  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// IsDeleted reports whether the account was soft-deleted
func (a *IntegrationAccount) IsDeleted() bool {
	return a.Status == StatusDeleted
}
