package integration

import "errors"

// Error taxonomy surfaced by the lifecycle operations. The API layer maps
// these to HTTP statuses; the messages are shown to users as-is, so they stay
// short and actionable and never quote raw remote fault strings.
var (
	// Validation
	ErrInvalidIdentifier      = errors.New("invalid identifier")
	ErrIdentifierNotDerivable = errors.New("could not derive a username from your email address; choose one explicitly")
	ErrInvalidStatus          = errors.New("unsupported status")

	// Conflicts
	ErrAlreadyHasAccount = errors.New("you already have an account for this integration")
	ErrIdentifierTaken   = errors.New("this name is already taken")

	// Remote service
	ErrRemoteRegistration = errors.New("the remote network rejected the registration")
	ErrRemoteCleanup      = errors.New("the remote network could not delete the account")

	// Consistency: remote and local state disagree, operator action needed
	ErrAccountOrphaned = errors.New("the account was registered on the network but could not be recorded; contact an operator")
	ErrLocalPersist    = errors.New("the account could not be recorded; contact an operator")

	// Lifecycle
	ErrNotFound            = errors.New("account not found")
	ErrIdentifierImmutable = errors.New("the name cannot be changed; delete the account and create a new one")
	ErrNoChanges           = errors.New("nothing to update")
	ErrDisabled            = errors.New("this integration is not enabled")

	// Registry
	ErrDuplicateIntegration = errors.New("integration id is already registered")
)
