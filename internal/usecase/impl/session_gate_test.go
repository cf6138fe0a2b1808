package impl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/feed"
	"kitchenline/internal/infra/auth"
	"kitchenline/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

const testPassword = "correct-horse"

type gateFixture struct {
	st       *testStore
	actors   *faultyActors
	provider service.AuthProvider
	metrics  *countingMetrics
	gate     *sessionGate
}

func newGateFixture(t *testing.T, role entity.Role) *gateFixture {
	t.Helper()

	cfg := newTestConfig()
	cfg.App.Role = role.String()
	st := newTestStore()
	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	provider := auth.NewLocalProvider(auth.LocalProviderParams{
		Lifecycle:   lc,
		Credentials: st.credentials,
		Hasher:      auth.NewBcryptHasher(cfg),
		Tokens:      tokens,
		Logger:      newDiscardLogger(),
	})
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)

	actors := &faultyActors{ActorRepository: st.actors}
	metrics := newCountingMetrics()
	gate := newSessionGate(provider, actors, role, feed.BackoffFromConfig(cfg), newDiscardLogger(), metrics)
	t.Cleanup(gate.stop)

	return &gateFixture{st: st, actors: actors, provider: provider, metrics: metrics, gate: gate}
}

// seedAccount creates an account and its actor record, leaving the provider
// signed in as that account.
func (f *gateFixture) seedAccount(t *testing.T, email string, role entity.Role) *entity.Actor {
	t.Helper()

	identity, err := f.provider.SignUp(context.Background(), email, testPassword, "Seeded")
	require.NoError(t, err)

	now := time.Now()
	actor := &entity.Actor{
		ID:        identity.UID,
		Role:      role,
		Email:     identity.Email,
		Verified:  true,
		Profile:   entity.Profile{DisplayName: "Seeded"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.st.actors.CreateActor(context.Background(), actor))

	return actor
}

func (f *gateFixture) signOut(t *testing.T) {
	t.Helper()
	require.NoError(t, f.provider.SignOut(context.Background()))
}

// start subscribes the gate and waits for the first resolution.
func (f *gateFixture) start(t *testing.T) usecase.SessionState {
	t.Helper()
	f.gate.start()

	return f.wait(t)
}

func (f *gateFixture) wait(t *testing.T) usecase.SessionState {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()

	state, err := f.gate.WaitResolved(ctx)
	require.NoError(t, err)

	return state
}

func TestSessionGate_StartsSignedOut(t *testing.T) {
	f := newGateFixture(t, entity.RoleCook)

	state := f.start(t)

	assert.Nil(t, state.Actor)
	assert.Equal(t, usecase.ResolvedByCallback, state.ResolvedBy)
	_, err := f.gate.CurrentActor()
	assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
	assert.Equal(t, []string{outcomeSignedOut}, f.metrics.sessionOutcomes())
}

func TestSessionGate_LoginAuthorizes(t *testing.T) {
	f := newGateFixture(t, entity.RoleCook)
	may := f.seedAccount(t, "may@example.com", entity.RoleCook)
	f.signOut(t)
	f.start(t)

	require.NoError(t, f.gate.Login(context.Background(), usecase.LoginInput{Email: "MAY@example.com", Password: testPassword}))

	state := f.wait(t)
	require.NotNil(t, state.Actor)
	assert.Equal(t, may.ID, state.Actor.ID)
	assert.Equal(t, usecase.ResolvedByCallback, state.ResolvedBy)
	assert.NotEmpty(t, state.Token)
	assert.NoError(t, state.Err)

	current, err := f.gate.CurrentActor()
	require.NoError(t, err)
	assert.Equal(t, entity.RoleCook, current.Role)
}

func TestSessionGate_SignupCreatesActorForAppRole(t *testing.T) {
	f := newGateFixture(t, entity.RoleCustomer)
	f.start(t)

	err := f.gate.Signup(context.Background(), usecase.SignupInput{
		Email:       "ben@example.com",
		Password:    testPassword,
		DisplayName: "Ben",
		Address:     "1 Harbour St",
	})
	require.NoError(t, err)

	state := f.wait(t)
	require.NotNil(t, state.Actor)
	assert.Equal(t, entity.RoleCustomer, state.Actor.Role)
	assert.Equal(t, usecase.ResolvedByCallback, state.ResolvedBy)

	stored, err := f.st.actors.FindActorByID(context.Background(), state.Actor.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ben", stored.Profile.DisplayName)
	assert.Equal(t, "ben@example.com", stored.Email)

	err = f.gate.Signup(context.Background(), usecase.SignupInput{Email: "ben@example.com", Password: testPassword, DisplayName: "Ben"})
	assert.ErrorIs(t, err, domainerrors.ErrAccountAlreadyExists)

	err = f.gate.Signup(context.Background(), usecase.SignupInput{Email: "short@example.com", Password: "1234", DisplayName: "S"})
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestSessionGate_FailedSignupCanBeRetried(t *testing.T) {
	f := newGateFixture(t, entity.RoleCustomer)
	f.start(t)
	input := usecase.SignupInput{Email: "ben@example.com", Password: testPassword, DisplayName: "Ben"}

	f.actors.failCreates.Store(true)
	err := f.gate.Signup(context.Background(), input)
	require.ErrorIs(t, err, domainerrors.ErrLoginUnavailable)

	state := f.gate.State()
	assert.True(t, state.Resolved)
	assert.Nil(t, state.Actor)
	assert.Equal(t, usecase.ResolvedByCommand, state.ResolvedBy)
	assert.Nil(t, f.provider.CurrentIdentity())
	_, err = f.st.credentials.FindCredentialByEmail(context.Background(), "ben@example.com")
	require.ErrorIs(t, err, repository.ErrCredentialNotFound, "the credential of an incomplete signup is removed")

	f.actors.failCreates.Store(false)
	require.NoError(t, f.gate.Signup(context.Background(), input))
	state = f.wait(t)
	require.NotNil(t, state.Actor)
	assert.Equal(t, entity.RoleCustomer, state.Actor.Role)

	require.NoError(t, f.gate.Logout(context.Background()))
	f.wait(t)
	require.NoError(t, f.gate.Login(context.Background(), usecase.LoginInput{Email: input.Email, Password: testPassword}))
	state = f.wait(t)
	require.NotNil(t, state.Actor)
	assert.Equal(t, "ben@example.com", state.Actor.Email)
}

func TestSessionGate_LoginForAnotherAppIsRejected(t *testing.T) {
	f := newGateFixture(t, entity.RoleCook)
	f.seedAccount(t, "ben@example.com", entity.RoleCustomer)
	f.signOut(t)
	f.start(t)

	err := f.gate.Login(context.Background(), usecase.LoginInput{Email: "ben@example.com", Password: testPassword})
	require.ErrorIs(t, err, domainerrors.ErrNotAuthorizedForApp)

	state := f.gate.State()
	assert.True(t, state.Resolved)
	assert.Nil(t, state.Actor)
	assert.Equal(t, usecase.ResolvedByCommand, state.ResolvedBy)
	assert.Empty(t, state.Token)
	assert.Nil(t, f.provider.CurrentIdentity())

	// The swallowed callbacks must not resolve the gate a second time.
	assert.Eventually(t, func() bool {
		outcomes := f.metrics.sessionOutcomes()
		return len(outcomes) == 2 && outcomes[1] == outcomeRejected
	}, testWait, testTick)
	assert.Equal(t, usecase.ResolvedByCommand, f.gate.State().ResolvedBy)
}

func TestSessionGate_LoginFailures(t *testing.T) {
	f := newGateFixture(t, entity.RoleCook)
	f.seedAccount(t, "may@example.com", entity.RoleCook)
	f.signOut(t)
	f.start(t)

	tests := []struct {
		name    string
		input   usecase.LoginInput
		wantErr error
	}{
		{"wrong password", usecase.LoginInput{Email: "may@example.com", Password: "nope"}, domainerrors.ErrInvalidCredentials},
		{"unknown email", usecase.LoginInput{Email: "who@example.com", Password: testPassword}, domainerrors.ErrAccountNotFound},
		{"malformed email", usecase.LoginInput{Email: "may", Password: testPassword}, domainerrors.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.gate.Login(context.Background(), tt.input)
			require.ErrorIs(t, err, tt.wantErr)

			state := f.gate.State()
			assert.True(t, state.Resolved)
			assert.Nil(t, state.Actor)
		})
	}
}

func TestSessionGate_LoginRoleReadFailure(t *testing.T) {
	f := newGateFixture(t, entity.RoleCook)
	f.seedAccount(t, "may@example.com", entity.RoleCook)
	f.signOut(t)
	f.start(t)
	f.actors.failing.Store(true)

	err := f.gate.Login(context.Background(), usecase.LoginInput{Email: "may@example.com", Password: testPassword})
	require.ErrorIs(t, err, domainerrors.ErrLoginUnavailable)

	state := f.gate.State()
	assert.True(t, state.Resolved)
	assert.Nil(t, state.Actor)
	assert.Equal(t, usecase.ResolvedByCommand, state.ResolvedBy)
	assert.Nil(t, f.provider.CurrentIdentity())
	assert.Greater(t, f.actors.finds.Load(), int32(1), "transient reads are retried")
}

func TestSessionGate_LogoutTearsDownOnce(t *testing.T) {
	f := newGateFixture(t, entity.RoleCook)
	f.seedAccount(t, "may@example.com", entity.RoleCook)
	f.signOut(t)
	f.start(t)

	var teardowns atomic.Int32
	f.gate.OnTeardown(func() { teardowns.Add(1) })

	require.NoError(t, f.gate.Login(context.Background(), usecase.LoginInput{Email: "may@example.com", Password: testPassword}))
	require.NotNil(t, f.wait(t).Actor)

	require.NoError(t, f.gate.Logout(context.Background()))
	state := f.wait(t)
	assert.Nil(t, state.Actor)
	assert.Empty(t, state.Token)
	assert.Nil(t, f.provider.CurrentIdentity())

	require.NoError(t, f.gate.Logout(context.Background()))
	state = f.wait(t)
	assert.Nil(t, state.Actor)
	assert.Equal(t, usecase.ResolvedByCommand, state.ResolvedBy)

	assert.Equal(t, int32(1), teardowns.Load())
}

func TestSessionGate_RestoredSession(t *testing.T) {
	f := newGateFixture(t, entity.RoleCook)
	may := f.seedAccount(t, "may@example.com", entity.RoleCook)

	state := f.start(t)

	require.NotNil(t, state.Actor)
	assert.Equal(t, may.ID, state.Actor.ID)
	assert.Equal(t, usecase.ResolvedByCallback, state.ResolvedBy)
	assert.NotEmpty(t, state.Token)
}

func TestSessionGate_RestoredForeignSessionIsSignedOut(t *testing.T) {
	f := newGateFixture(t, entity.RoleAdmin)
	f.seedAccount(t, "may@example.com", entity.RoleCook)

	state := f.start(t)

	assert.Nil(t, state.Actor)
	assert.Equal(t, usecase.ResolvedByCallback, state.ResolvedBy)
	assert.Eventually(t, func() bool { return f.provider.CurrentIdentity() == nil }, testWait, testTick)
	assert.Equal(t, []string{outcomeRejected}, f.metrics.sessionOutcomes())
}

func TestSessionGate_RestoredSessionTransientFailure(t *testing.T) {
	f := newGateFixture(t, entity.RoleCook)
	f.seedAccount(t, "may@example.com", entity.RoleCook)
	f.actors.failing.Store(true)

	state := f.start(t)

	assert.Nil(t, state.Actor)
	require.Error(t, state.Err)
	assert.ErrorIs(t, state.Err, domainerrors.ErrTransientStore)
	assert.NotNil(t, f.provider.CurrentIdentity(), "a failed read is not a sign-out")
	assert.Equal(t, []string{outcomeTransient}, f.metrics.sessionOutcomes())
}
