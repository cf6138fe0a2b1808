package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"kitchenline/config"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/infra/persistence/memory"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type sessionEvents struct {
	mu     sync.Mutex
	events []*service.Identity
}

func (e *sessionEvents) listener(identity *service.Identity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, identity)
}

func (e *sessionEvents) uids() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.events))
	for i, ev := range e.events {
		if ev != nil {
			out[i] = ev.UID
		}
	}

	return out
}

func newTestProvider(t *testing.T) *localProvider {
	t.Helper()

	cfg := &config.Config{Auth: &config.AuthConfig{BcryptCost: bcrypt.MinCost, TokenExpiry: time.Hour}}
	cfg.SecretKey.Access = "test_access_secret_key_very_long_for_testing"
	tokens, err := NewJWTService(cfg)
	require.NoError(t, err)

	store := memory.NewStore()
	p := newLocalProvider(memory.NewCredentialRepository(store), NewBcryptHasher(cfg), tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(p.Close)

	return p
}

func TestLocalProvider_SignUpAndSignIn(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	created, err := p.SignUp(ctx, "  Cook@Example.com ", "StrongPass123!", "Auntie May")
	require.NoError(t, err)
	assert.Equal(t, "cook@example.com", created.Email)
	assert.NotEmpty(t, created.Token)
	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, p.CurrentIdentity())

	signedIn, err := p.SignIn(ctx, "cook@example.com", "StrongPass123!")
	require.NoError(t, err)
	assert.Equal(t, created.UID, signedIn.UID)
	assert.Equal(t, created.UID, p.CurrentIdentity().UID)
}

func TestLocalProvider_SignInErrors(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.SignIn(ctx, "nobody@example.com", "StrongPass123!")
	assert.True(t, errors.Is(err, service.ErrAccountNotFound))

	_, err = p.SignUp(ctx, "cook@example.com", "StrongPass123!", "")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))

	_, err = p.SignIn(ctx, "cook@example.com", "WrongPass123!")
	assert.True(t, errors.Is(err, service.ErrWrongPassword))
	assert.Nil(t, p.CurrentIdentity())

	_, err = p.SignUp(ctx, "COOK@example.com", "StrongPass123!", "")
	assert.True(t, errors.Is(err, service.ErrEmailInUse))
}

func TestLocalProvider_ListenerSeesOrderedEvents(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	events := &sessionEvents{}
	remove := p.OnSessionChanged(events.listener)

	first, err := p.SignUp(ctx, "a@example.com", "StrongPass123!", "")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))
	require.NoError(t, p.SignOut(ctx))
	second, err := p.SignUp(ctx, "b@example.com", "StrongPass123!", "")
	require.NoError(t, err)

	want := []string{"", first.UID, "", second.UID}
	assert.Eventually(t, func() bool { return len(events.uids()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, events.uids())

	remove()
	require.NoError(t, p.SignOut(ctx))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, events.uids(), len(want))
}

func TestLocalProvider_LateListenerGetsCurrentState(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	identity, err := p.SignUp(ctx, "a@example.com", "StrongPass123!", "")
	require.NoError(t, err)

	events := &sessionEvents{}
	p.OnSessionChanged(events.listener)

	assert.Eventually(t, func() bool { return len(events.uids()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{identity.UID}, events.uids())
}

func TestLocalProvider_DeleteAccount(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	events := &sessionEvents{}
	p.OnSessionChanged(events.listener)

	created, err := p.SignUp(ctx, "cook@example.com", "StrongPass123!", "")
	require.NoError(t, err)

	require.NoError(t, p.DeleteAccount(ctx, created.UID))
	assert.Nil(t, p.CurrentIdentity())
	require.NoError(t, p.DeleteAccount(ctx, created.UID), "deleting twice is a no-op")

	want := []string{"", created.UID, ""}
	assert.Eventually(t, func() bool { return len(events.uids()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, events.uids())

	_, err = p.SignIn(ctx, "cook@example.com", "StrongPass123!")
	assert.True(t, errors.Is(err, service.ErrAccountNotFound))
	_, err = p.SignUp(ctx, "cook@example.com", "StrongPass123!", "")
	require.NoError(t, err)
}
