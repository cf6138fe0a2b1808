package impl

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"kitchenline/config"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/feed"
	"kitchenline/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Outcomes reported to the session metrics.
const (
	outcomeAuthorized = "authorized"
	outcomeSignedOut  = "signed_out"
	outcomeRejected   = "rejected"
	outcomeFailed     = "failed"
	outcomeTransient  = "transient"
)

// defaultRoleFetchWindow bounds role-record retries on the callback path when
// the feed config sets no limit, so one slow read cannot stall session events.
const defaultRoleFetchWindow = 30 * time.Second

// loginAttempt is one explicit login or signup. decided is closed once the
// command knows whether the session it started is authorized.
type loginAttempt struct {
	decided chan struct{}
	actor   *entity.Actor
}

// sessionGate resolves the signed-in actor. Every session transition sets
// resolved exactly once: explicit commands resolve their own failures, the
// provider callback resolves everything it is going to observe.
type sessionGate struct {
	provider service.AuthProvider
	actors   repository.ActorRepository
	role     entity.Role
	backoff  feed.BackoffConfig
	logger   *slog.Logger
	metrics  service.Metrics
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// commandMu keeps one login, signup or logout in flight.
	commandMu sync.Mutex

	mu          sync.Mutex
	resolved    bool
	changed     chan struct{}
	resolvedBy  string
	resolutions int
	actor       *entity.Actor
	identity    *service.Identity
	lastErr     error
	// epoch is bumped by every command so a callback that started earlier
	// cannot apply a stale result.
	epoch   uint64
	attempt *loginAttempt
	// rejected counts session callbacks to ignore per UID; quietSignOuts
	// counts signed-out callbacks caused by the gate's own rejections.
	rejected      map[string]int
	quietSignOuts int

	teardownMu      sync.Mutex
	teardown        []func()
	teardownPending bool

	remove func()
}

// SessionGateParams holds dependencies for the session gate, injected by Fx.
type SessionGateParams struct {
	fx.In
	fx.Lifecycle

	Config   *config.Config
	Provider service.AuthProvider
	Actors   repository.ActorRepository
	Logger   *slog.Logger
	Metrics  service.Metrics `optional:"true"`
}

// NewSessionGate creates the gate for the role this process serves and
// subscribes it to the provider's session callback on start.
func NewSessionGate(params SessionGateParams) (usecase.SessionUsecase, error) {
	if params.Config == nil || params.Config.App == nil {
		return nil, errors.New("app config is required")
	}
	role := entity.Role(params.Config.App.Role)
	if !role.IsValid() {
		return nil, errors.Errorf("app.role %q is not one of customer, cook, admin", params.Config.App.Role)
	}

	gate := newSessionGate(params.Provider, params.Actors, role, feed.BackoffFromConfig(params.Config), params.Logger, params.Metrics)

	params.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			gate.start()

			return nil
		},
		OnStop: func(_ context.Context) error {
			gate.stop()

			return nil
		},
	})

	return gate, nil
}

func newSessionGate(
	provider service.AuthProvider,
	actors repository.ActorRepository,
	role entity.Role,
	backoffCfg feed.BackoffConfig,
	logger *slog.Logger,
	metrics service.Metrics,
) *sessionGate {
	if metrics == nil {
		metrics = service.NopMetrics{}
	}
	if backoffCfg.MaxElapsedTime <= 0 {
		backoffCfg.MaxElapsedTime = defaultRoleFetchWindow
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &sessionGate{
		provider: provider,
		actors:   actors,
		role:     role,
		backoff:  backoffCfg,
		logger:   logger.With(slog.String("app_role", role.String())),
		metrics:  metrics,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		changed:  make(chan struct{}),
		rejected: make(map[string]int),
	}
}

func (g *sessionGate) start() {
	g.remove = g.provider.OnSessionChanged(g.onSessionChanged)
}

func (g *sessionGate) stop() {
	g.cancel()
	if g.remove != nil {
		g.remove()
	}
	g.runTeardown()
}

// Login checks credentials, then the actor's role. The callback resolves a
// successful login; every failure is resolved here.
func (g *sessionGate) Login(ctx context.Context, input usecase.LoginInput) error {
	if err := validateInput(input); err != nil {
		return err
	}

	g.commandMu.Lock()
	defer g.commandMu.Unlock()

	attempt := g.beginAttempt()

	identity, err := g.provider.SignIn(ctx, input.Email, input.Password)
	if err != nil {
		loginErr := signInError(err)
		g.settleFailure(attempt, outcomeFailed)
		g.logger.Info("Login rejected by provider", slog.Any("error", err))

		return loginErr
	}

	actor, err := g.fetchActor(ctx, identity.UID)
	switch {
	case err == nil && actor.Role == g.role:
		g.authorize(attempt, actor)
		g.logger.Info("Login authorized", slog.String("actor_id", actor.ID))

		return nil
	case err == nil, errors.Is(err, repository.ErrActorNotFound):
		g.reject(ctx, attempt, identity)
		g.logger.Warn("Login for another application rejected", slog.String("uid", identity.UID))

		return errors.WithStack(domainerrors.ErrNotAuthorizedForApp)
	default:
		g.reject(ctx, attempt, identity)
		g.logger.Error("Failed to read actor role during login", slog.String("uid", identity.UID), slog.Any("error", err))

		return errors.WithStack(domainerrors.ErrLoginUnavailable)
	}
}

// Signup creates the account and its actor record holding this application's role.
func (g *sessionGate) Signup(ctx context.Context, input usecase.SignupInput) error {
	if err := validateInput(input); err != nil {
		return err
	}

	g.commandMu.Lock()
	defer g.commandMu.Unlock()

	attempt := g.beginAttempt()

	identity, err := g.provider.SignUp(ctx, input.Email, input.Password, input.DisplayName)
	if err != nil {
		g.settleFailure(attempt, outcomeFailed)

		return signUpError(err)
	}

	now := g.now()
	actor := &entity.Actor{
		ID:    identity.UID,
		Role:  g.role,
		Email: identity.Email,
		Profile: entity.Profile{
			DisplayName: input.DisplayName,
			Phone:       input.Phone,
			Address:     input.Address,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.actors.CreateActor(ctx, actor); err != nil {
		g.reject(ctx, attempt, identity)
		g.logger.Error("Failed to create actor record", slog.String("uid", identity.UID), slog.Any("error", err))
		g.rollbackSignup(context.WithoutCancel(ctx), identity.UID)

		return errors.WithStack(domainerrors.ErrLoginUnavailable)
	}

	g.authorize(attempt, actor)
	g.logger.Info("Signup completed", slog.String("actor_id", actor.ID))

	return nil
}

// rollbackSignup deletes the account of a signup whose actor record could not
// be written, so the email can sign up again.
func (g *sessionGate) rollbackSignup(ctx context.Context, uid string) {
	_, err := feed.Retry(ctx, g.backoff, g.logger, "signup-rollback", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.provider.DeleteAccount(ctx, uid)
	})
	if err != nil {
		g.logger.Error("Failed to delete account of incomplete signup", slog.String("uid", uid), slog.Any("error", err))
	}
}

// Logout signs the session out. The signed-out callback resolves the gate;
// without a provider session there is no callback, so Logout resolves it.
func (g *sessionGate) Logout(ctx context.Context) error {
	g.commandMu.Lock()
	defer g.commandMu.Unlock()

	g.mu.Lock()
	g.epoch++
	g.dropPendingLocked()
	g.unresolveLocked()
	g.mu.Unlock()

	g.runTeardown()

	if g.provider.CurrentIdentity() == nil {
		g.mu.Lock()
		g.clearActorLocked()
		g.resolveLocked(usecase.ResolvedByCommand, outcomeSignedOut)
		g.mu.Unlock()

		return nil
	}

	if err := g.provider.SignOut(ctx); err != nil {
		g.mu.Lock()
		g.resolveLocked(usecase.ResolvedByCommand, outcomeFailed)
		g.mu.Unlock()

		return errors.Wrap(domainerrors.ErrInternalError.WithDetails(err.Error()), "failed to sign out")
	}

	return nil
}

func (g *sessionGate) State() usecase.SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.stateLocked()
}

func (g *sessionGate) WaitResolved(ctx context.Context) (usecase.SessionState, error) {
	for {
		g.mu.Lock()
		if g.resolved {
			state := g.stateLocked()
			g.mu.Unlock()

			return state, nil
		}
		changed := g.changed
		g.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return g.State(), errors.WithStack(domainerrors.ErrSessionNotResolved)
		}
	}
}

func (g *sessionGate) CurrentActor() (*entity.Actor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.resolved {
		return nil, errors.WithStack(domainerrors.ErrSessionNotResolved)
	}
	if g.actor == nil {
		return nil, errors.WithStack(domainerrors.ErrUnauthenticated)
	}

	return copyActor(g.actor), nil
}

func (g *sessionGate) OnTeardown(fn func()) {
	g.teardownMu.Lock()
	defer g.teardownMu.Unlock()

	g.teardown = append(g.teardown, fn)
}

// onSessionChanged is the provider callback. Calls arrive in order, one at a time.
func (g *sessionGate) onSessionChanged(identity *service.Identity) {
	// A command in flight decides first; the callback then knows whether the
	// session it reports belongs to that command.
	if !g.awaitDecision() {
		return
	}

	if identity == nil {
		g.handleSignedOut()

		return
	}

	g.mu.Lock()
	if n := g.rejected[identity.UID]; n > 0 {
		if n == 1 {
			delete(g.rejected, identity.UID)
		} else {
			g.rejected[identity.UID] = n - 1
		}
		g.mu.Unlock()

		return
	}

	if current := g.attempt; current != nil && current.actor != nil && current.actor.ID == identity.UID {
		previous := g.actor
		g.attempt = nil
		g.actor = current.actor
		g.identity = identity
		g.lastErr = nil
		g.resolveLocked(usecase.ResolvedByCallback, outcomeAuthorized)
		g.mu.Unlock()

		g.actorChanged(previous, current.actor)

		return
	}
	if g.attempt != nil {
		// A newer command owns the session; its own callback follows.
		g.mu.Unlock()

		return
	}
	epoch := g.epoch
	g.mu.Unlock()

	g.resolveFromStore(identity, epoch)
}

// awaitDecision waits until no undecided command is in flight. It reports
// false when the gate stopped while waiting.
func (g *sessionGate) awaitDecision() bool {
	for {
		g.mu.Lock()
		attempt := g.attempt
		g.mu.Unlock()
		if attempt == nil {
			return true
		}

		select {
		case <-attempt.decided:
		case <-g.ctx.Done():
			return false
		}

		g.mu.Lock()
		current := g.attempt
		g.mu.Unlock()
		if current == nil || current == attempt {
			return true
		}
	}
}

func (g *sessionGate) handleSignedOut() {
	g.mu.Lock()
	if g.quietSignOuts > 0 {
		g.quietSignOuts--
		g.mu.Unlock()

		return
	}
	if g.attempt != nil {
		// An authorized attempt is about to be resolved by its own callback.
		g.mu.Unlock()

		return
	}

	previous := g.actor
	g.clearActorLocked()
	if !g.resolved {
		g.resolveLocked(usecase.ResolvedByCallback, outcomeSignedOut)
	}
	g.mu.Unlock()

	if previous != nil {
		g.runTeardown()
	}
}

// resolveFromStore handles a session no command is waiting for, such as one
// restored when the gate subscribed.
func (g *sessionGate) resolveFromStore(identity *service.Identity, epoch uint64) {
	g.mu.Lock()
	g.unresolveLocked()
	g.mu.Unlock()

	actor, err := g.fetchActor(g.ctx, identity.UID)

	g.mu.Lock()
	if g.epoch != epoch || g.attempt != nil || g.ctx.Err() != nil {
		g.mu.Unlock()

		return
	}

	switch {
	case err == nil && actor.Role == g.role:
		previous := g.actor
		g.actor = actor
		g.identity = identity
		g.lastErr = nil
		g.resolveLocked(usecase.ResolvedByCallback, outcomeAuthorized)
		g.mu.Unlock()

		g.actorChanged(previous, actor)
	case err == nil, errors.Is(err, repository.ErrActorNotFound):
		previous := g.actor
		g.clearActorLocked()
		g.resolveLocked(usecase.ResolvedByCallback, outcomeRejected)
		g.mu.Unlock()

		g.logger.Warn("Session for another application signed out", slog.String("uid", identity.UID))
		g.signOutQuietly(g.ctx)
		if previous != nil {
			g.runTeardown()
		}
	default:
		// Keep whoever was signed in; a failed read is not a sign-out.
		g.lastErr = errors.Wrap(domainerrors.ErrTransientStore.WithDetails(err.Error()), "failed to read actor role")
		g.resolveLocked(usecase.ResolvedByCallback, outcomeTransient)
		g.mu.Unlock()

		g.logger.Error("Failed to read actor role, keeping previous session", slog.String("uid", identity.UID), slog.Any("error", err))
	}
}

func (g *sessionGate) fetchActor(ctx context.Context, id string) (*entity.Actor, error) {
	return feed.Retry(ctx, g.backoff, g.logger, "actor-role", func(ctx context.Context) (*entity.Actor, error) {
		return g.actors.FindActorByID(ctx, id)
	})
}

func (g *sessionGate) beginAttempt() *loginAttempt {
	g.mu.Lock()
	defer g.mu.Unlock()

	attempt := &loginAttempt{decided: make(chan struct{})}
	g.epoch++
	g.dropPendingLocked()
	g.attempt = attempt
	g.unresolveLocked()

	return attempt
}

// dropPendingLocked abandons an authorized attempt whose callback has not
// arrived yet. That callback is ignored when it does.
func (g *sessionGate) dropPendingLocked() {
	if g.attempt != nil && g.attempt.actor != nil {
		g.rejected[g.attempt.actor.ID]++
	}
	g.attempt = nil
}

// authorize hands an authorized actor to the callback, which resolves the gate.
func (g *sessionGate) authorize(attempt *loginAttempt, actor *entity.Actor) {
	g.mu.Lock()
	defer g.mu.Unlock()

	attempt.actor = actor
	close(attempt.decided)
}

// settleFailure resolves an attempt the provider never started a session for.
func (g *sessionGate) settleFailure(attempt *loginAttempt, outcome string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.attempt == attempt {
		g.attempt = nil
	}
	close(attempt.decided)
	g.resolveLocked(usecase.ResolvedByCommand, outcome)
}

// reject signs out a session the provider started but this application must
// not expose. Its callbacks are swallowed and the command resolves the gate.
func (g *sessionGate) reject(ctx context.Context, attempt *loginAttempt, identity *service.Identity) {
	g.mu.Lock()
	g.rejected[identity.UID]++
	g.mu.Unlock()

	g.signOutQuietly(context.WithoutCancel(ctx))

	g.mu.Lock()
	previous := g.actor
	g.clearActorLocked()
	if g.attempt == attempt {
		g.attempt = nil
	}
	close(attempt.decided)
	g.resolveLocked(usecase.ResolvedByCommand, outcomeRejected)
	g.mu.Unlock()

	if previous != nil {
		g.runTeardown()
	}
}

// signOutQuietly ends the provider session without the signed-out callback
// resolving the gate a second time.
func (g *sessionGate) signOutQuietly(ctx context.Context) {
	if g.provider.CurrentIdentity() == nil {
		return
	}

	g.mu.Lock()
	g.quietSignOuts++
	g.mu.Unlock()

	if err := g.provider.SignOut(ctx); err != nil {
		g.mu.Lock()
		g.quietSignOuts--
		g.mu.Unlock()
		g.logger.Error("Failed to sign out rejected session", slog.Any("error", err))
	}
}

func (g *sessionGate) actorChanged(previous, current *entity.Actor) {
	if previous != nil && previous.ID != current.ID {
		g.runTeardown()
	}

	g.teardownMu.Lock()
	g.teardownPending = true
	g.teardownMu.Unlock()
}

// runTeardown runs the teardown hooks once per signed-in actor.
func (g *sessionGate) runTeardown() {
	g.teardownMu.Lock()
	if !g.teardownPending {
		g.teardownMu.Unlock()

		return
	}
	g.teardownPending = false
	hooks := slices.Clone(g.teardown)
	g.teardownMu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

func (g *sessionGate) unresolveLocked() {
	if g.resolved {
		g.resolved = false
		g.changed = make(chan struct{})
	}
}

func (g *sessionGate) resolveLocked(path, outcome string) {
	if g.resolved {
		g.logger.Error("Session already resolved", slog.String("path", path), slog.String("previous_path", g.resolvedBy))

		return
	}
	g.resolved = true
	g.resolvedBy = path
	g.resolutions++
	close(g.changed)
	g.metrics.SessionResolved(outcome)
}

func (g *sessionGate) clearActorLocked() {
	g.actor = nil
	g.identity = nil
	g.lastErr = nil
}

func (g *sessionGate) stateLocked() usecase.SessionState {
	state := usecase.SessionState{
		Resolved:   g.resolved,
		Actor:      copyActor(g.actor),
		Err:        g.lastErr,
		ResolvedBy: g.resolvedBy,
	}
	if g.identity != nil && g.actor != nil {
		state.Token = g.identity.Token
		state.ExpiresAt = g.identity.ExpiresAt
	}

	return state
}

func copyActor(a *entity.Actor) *entity.Actor {
	if a == nil {
		return nil
	}
	c := *a
	c.PushTokens = slices.Clone(a.PushTokens)
	if a.Profile.DeliveryFee != nil {
		fee := *a.Profile.DeliveryFee
		c.Profile.DeliveryFee = &fee
	}

	return &c
}

func signInError(err error) error {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		return errors.WithStack(domainerrors.ErrAccountNotFound)
	case errors.Is(err, service.ErrWrongPassword):
		return errors.WithStack(domainerrors.ErrInvalidCredentials)
	default:
		return errors.Wrap(domainerrors.ErrLoginUnavailable, err.Error())
	}
}

func signUpError(err error) error {
	var appErr domainerrors.AppError
	switch {
	case errors.Is(err, service.ErrEmailInUse):
		return errors.WithStack(domainerrors.ErrAccountAlreadyExists)
	case errors.As(err, &appErr):
		return err
	default:
		return errors.Wrap(domainerrors.ErrLoginUnavailable, err.Error())
	}
}
