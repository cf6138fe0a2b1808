package service

import (
	"context"
	"errors"
	"time"
)

// Errors returned by an AuthProvider.
var (
	// ErrAccountNotFound is returned by SignIn when no account exists for the email.
	ErrAccountNotFound = errors.New("auth: account not found")
	// ErrWrongPassword is returned by SignIn when the password does not match.
	ErrWrongPassword = errors.New("auth: wrong password")
	// ErrEmailInUse is returned by SignUp when the email is already registered.
	ErrEmailInUse = errors.New("auth: email already in use")
	// ErrProviderUnavailable is returned when the provider's backing store cannot be reached.
	ErrProviderUnavailable = errors.New("auth: provider unavailable")
)

// Identity is the provider's view of a signed-in account. It carries no role;
// roles live on the actor record.
type Identity struct {
	UID         string    // Provider-assigned identifier.
	Email       string    // Normalized login email.
	DisplayName string    // Name given at signup.
	Token       string    // Session token presented by API callers.
	ExpiresAt   time.Time // Expiry of Token.
}

// SessionListener receives the provider's session state. A nil identity means signed out.
type SessionListener func(identity *Identity)

// AuthProvider is the credential authority. It keeps one session per process.
type AuthProvider interface {
	// SignIn checks credentials and, on success, starts a session.
	SignIn(ctx context.Context, email, password string) (*Identity, error)

	// SignUp creates an account and starts a session for it.
	SignUp(ctx context.Context, email, password, displayName string) (*Identity, error)

	// SignOut ends the current session. Signing out without a session is a no-op.
	SignOut(ctx context.Context) error

	// DeleteAccount removes the account with uid, ending its session if it is
	// the current one. Deleting an account that does not exist is a no-op, so
	// callers may retry it.
	DeleteAccount(ctx context.Context, uid string) error

	// CurrentIdentity returns the signed-in identity or nil.
	CurrentIdentity() *Identity

	// OnSessionChanged registers listener. It is invoked asynchronously once with
	// the current state and again after every change, in order, never concurrently.
	// The returned function removes the listener.
	OnSessionChanged(listener SessionListener) (remove func())
}
