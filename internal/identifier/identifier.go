// Package identifier validates network-visible account names and derives
// default ones from email addresses. All functions are pure.
package identifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxNickLength is the nick length accepted by the IRC network
	MaxNickLength = 30
	// MaxLocalpartLength is the username length accepted by the XMPP server
	MaxLocalpartLength = 64
)

var (
	// IRC nicks: RFC 2812 grammar, minus a leading digit or dash
	nickRegexp = regexp.MustCompile("^[A-Za-z\\[\\]\\\\`_^{|}][A-Za-z0-9\\[\\]\\\\`_^{|}-]*$")

	// XMPP localparts: conservative subset of what XEP-0029 allows, so the
	// same name is also usable on services that are stricter than prosody
	localpartRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// ErrNotDerivable is returned when no valid identifier can be derived from an email
var ErrNotDerivable = errors.New("cannot derive an identifier from email address")

// ValidateNick checks a proposed IRC nick against the network's syntax rules
func ValidateNick(nick string) error {
	if nick == "" {
		return errors.New("nick must not be empty")
	}
	if len(nick) > MaxNickLength {
		return fmt.Errorf("nick must be at most %d characters", MaxNickLength)
	}
	if !nickRegexp.MatchString(nick) {
		return errors.New("nick contains invalid characters or starts with a digit")
	}
	return nil
}

// ValidateLocalpart checks a proposed XMPP username (the JID local-part)
func ValidateLocalpart(username string) error {
	if username == "" {
		return errors.New("username must not be empty")
	}
	if len(username) > MaxLocalpartLength {
		return fmt.Errorf("username must be at most %d characters", MaxLocalpartLength)
	}
	if !localpartRegexp.MatchString(username) {
		return errors.New("username may only contain lowercase letters, digits, '.', '_' and '-', and must start with a letter or digit")
	}
	return nil
}

// FromEmail derives a default XMPP username from an email address: the
// local-part, lowercased, with any +tag suffix removed. The result is
// re-validated; ErrNotDerivable is returned when the email's local-part
// cannot serve as a username.
func FromEmail(email string) (string, error) {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "", ErrNotDerivable
	}

	local = strings.ToLower(local)
	if tag := strings.Index(local, "+"); tag >= 0 {
		local = local[:tag]
	}

	if err := ValidateLocalpart(local); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotDerivable, err)
	}
	return local, nil
}
