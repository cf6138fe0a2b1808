package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// LocalProviderParams defines the dependencies of the local auth provider.
type LocalProviderParams struct {
	fx.In
	fx.Lifecycle

	Credentials repository.CredentialRepository
	Hasher      service.PasswordHasher
	Tokens      service.TokenService
	Logger      *slog.Logger
}

// localProvider is an AuthProvider whose accounts live in the document store's
// credentials collection. It keeps a single session for the process.
type localProvider struct {
	credentials repository.CredentialRepository
	hasher      service.PasswordHasher
	tokens      service.TokenService
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.Mutex
	current   *service.Identity
	listeners map[uint64]service.SessionListener
	nextID    uint64

	events *dispatcher
}

// NewLocalProvider creates the provider and stops its event dispatcher on shutdown.
func NewLocalProvider(params LocalProviderParams) service.AuthProvider {
	p := newLocalProvider(params.Credentials, params.Hasher, params.Tokens, params.Logger)

	params.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			p.Close()

			return nil
		},
	})

	return p
}

func newLocalProvider(credentials repository.CredentialRepository, hasher service.PasswordHasher, tokens service.TokenService, logger *slog.Logger) *localProvider {
	return &localProvider{
		credentials: credentials,
		hasher:      hasher,
		tokens:      tokens,
		logger:      logger,
		now:         time.Now,
		listeners:   make(map[uint64]service.SessionListener),
		events:      newDispatcher(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *localProvider) SignIn(ctx context.Context, email, password string) (*service.Identity, error) {
	cred, err := p.credentials.FindCredentialByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return nil, service.ErrAccountNotFound
	}
	if err != nil {
		return nil, p.unavailable(err, "failed to look up credential")
	}
	if !p.hasher.Check(password, cred.PasswordHash) {
		return nil, service.ErrWrongPassword
	}

	return p.startSession(cred)
}

func (p *localProvider) SignUp(ctx context.Context, email, password, displayName string) (*service.Identity, error) {
	hash, err := p.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	cred := &entity.Credential{
		UID:          uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		CreatedAt:    p.now(),
	}
	err = p.credentials.CreateCredential(ctx, cred)
	if errors.Is(err, repository.ErrCredentialAlreadyExists) {
		return nil, service.ErrEmailInUse
	}
	if err != nil {
		return nil, p.unavailable(err, "failed to create credential")
	}

	return p.startSession(cred)
}

func (p *localProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}
	p.logger.Info("Session ended", slog.String("uid", p.current.UID))
	p.current = nil
	p.broadcastLocked(nil)

	return nil
}

func (p *localProvider) DeleteAccount(ctx context.Context, uid string) error {
	p.mu.Lock()
	if p.current != nil && p.current.UID == uid {
		p.current = nil
		p.broadcastLocked(nil)
	}
	p.mu.Unlock()

	err := p.credentials.DeleteCredential(ctx, uid)
	if err != nil && !errors.Is(err, repository.ErrCredentialNotFound) {
		return errors.Wrap(err, "failed to delete credential")
	}
	p.logger.Info("Account deleted", slog.String("uid", uid))

	return nil
}

func (p *localProvider) CurrentIdentity() *service.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	return copyIdentity(p.current)
}

func (p *localProvider) OnSessionChanged(listener service.SessionListener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	current := copyIdentity(p.current)
	p.events.enqueue(func() { p.deliver(id, current) })
	p.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Close stops event delivery. Pending events are dropped.
func (p *localProvider) Close() {
	p.events.close()
}

func (p *localProvider) startSession(cred *entity.Credential) (*service.Identity, error) {
	token, expiresAt, err := p.tokens.GenerateSessionToken(cred.UID, nil)
	if err != nil {
		return nil, err
	}

	identity := &service.Identity{
		UID:         cred.UID,
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
		Token:       token,
		ExpiresAt:   expiresAt,
	}

	p.mu.Lock()
	p.current = identity
	p.broadcastLocked(copyIdentity(identity))
	p.mu.Unlock()

	p.logger.Info("Session started", slog.String("uid", cred.UID))

	return copyIdentity(identity), nil
}

// broadcastLocked queues identity for every registered listener. Callers hold p.mu
// so events are queued in the order the session changed.
func (p *localProvider) broadcastLocked(identity *service.Identity) {
	for id := range p.listeners {
		p.events.enqueue(func() { p.deliver(id, copyIdentity(identity)) })
	}
}

// deliver invokes a listener unless it was removed after the event was queued.
func (p *localProvider) deliver(id uint64, identity *service.Identity) {
	p.mu.Lock()
	listener, ok := p.listeners[id]
	p.mu.Unlock()
	if !ok {
		return
	}

	listener(identity)
}

func (p *localProvider) unavailable(err error, msg string) error {
	if errors.Is(err, repository.ErrStoreUnavailable) {
		return errors.Wrap(service.ErrProviderUnavailable, err.Error())
	}

	return errors.Wrap(err, msg)
}

func copyIdentity(identity *service.Identity) *service.Identity {
	if identity == nil {
		return nil
	}
	c := *identity

	return &c
}
