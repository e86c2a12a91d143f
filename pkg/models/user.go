package models

import "time"

// User roles as recorded by the portal
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a portal user as seen by the provisioning core
type User struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

// IsAdmin reports whether the user has the admin/staff role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session is a portal login session resolved by the auth middleware
type Session struct {
	Token     string    `db:"token"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

// Expired reports whether the session is past its expiry
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
