// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"kitchenline/internal/domain/entity"
)

// Resolution paths recorded on SessionState.ResolvedBy.
const (
	// ResolvedByCommand means an explicit login, signup or logout settled the session itself.
	ResolvedByCommand = "command"
	// ResolvedByCallback means the auth provider's session callback settled the session.
	ResolvedByCallback = "callback"
)

// --- Input DTOs ---

// LoginInput defines the data required to sign in.
type LoginInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,max=72"`
}

// SignupInput defines the data required to create an account for this application's role.
type SignupInput struct {
	Email       string `validate:"required,email,max=254"`
	Password    string `validate:"required,min=8,max=72"`
	DisplayName string `validate:"required,max=100"`
	Phone       string `validate:"omitempty,max=32"`
	Address     string `validate:"omitempty,max=500"`
}

// --- Output DTOs ---

// SessionState is a consistent snapshot of the session gate.
type SessionState struct {
	// Resolved is false while a session transition is in flight.
	Resolved bool
	// Actor is the authorized actor, or nil when nobody is signed in.
	Actor *entity.Actor
	// Token is the session token API callers present. Empty without an actor.
	Token     string
	ExpiresAt time.Time
	// Err is set when the last resolution could not read the actor record.
	// The previous actor is kept in that case.
	Err error
	// ResolvedBy names the code path that last set Resolved.
	ResolvedBy string
}

// SessionUsecase resolves who is signed in to this application and whether they may be.
type SessionUsecase interface {
	// Login checks credentials and the actor's role. On success the session
	// resolves asynchronously; use WaitResolved to observe it.
	Login(ctx context.Context, input LoginInput) error

	// Signup creates an account holding this application's role and signs it in.
	Signup(ctx context.Context, input SignupInput) error

	// Logout ends the session and tears down everything opened for it.
	Logout(ctx context.Context) error

	// State returns the current gate state.
	State() SessionState

	// WaitResolved blocks until the gate is resolved or ctx ends.
	WaitResolved(ctx context.Context) (SessionState, error)

	// CurrentActor returns the resolved actor or ErrUnauthenticated.
	CurrentActor() (*entity.Actor, error)

	// OnTeardown registers fn to run whenever the signed-in actor goes away.
	OnTeardown(fn func())
}
