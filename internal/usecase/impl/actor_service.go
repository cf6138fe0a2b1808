package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	deliverycontext "kitchenline/internal/delivery/context"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const maxPushTokens = 10

// actorService implements the ActorUsecase interface.
type actorService struct {
	txManager repository.TransactionManager
	actorRepo repository.ActorRepository
	fanout    *fanout
	logger    *slog.Logger
	now       func() time.Time
}

// ActorServiceParams holds dependencies for ActorService, injected by Fx.
type ActorServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	ActorRepo repository.ActorRepository
	Publisher service.EventPublisher `optional:"true"`
	Metrics   service.Metrics        `optional:"true"`
	Logger    *slog.Logger
}

// NewActorService is the constructor for actorService.
func NewActorService(params ActorServiceParams) usecase.ActorUsecase {
	return &actorService{
		txManager: params.TxManager,
		actorRepo: params.ActorRepo,
		fanout:    newFanout(params.Publisher, params.Metrics, params.Logger),
		logger:    params.Logger,
		now:       time.Now,
	}
}

func (srv *actorService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *actorService) GetProfile(ctx context.Context, actor *entity.Actor) (*entity.Actor, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	current, err := srv.actorRepo.FindActorByID(ctx, actor.ID)
	if errors.Is(err, repository.ErrActorNotFound) {
		return nil, errors.WithStack(domainerrors.ErrActorNotFound)
	}
	if err != nil {
		return nil, storeError(err, "failed to find actor")
	}

	return current, nil
}

func (srv *actorService) UpdateProfile(ctx context.Context, actor *entity.Actor, input usecase.UpdateProfileInput) (*entity.Actor, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.DeliveryFee != nil && actor.Role != entity.RoleCook {
		return nil, errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("only cooks set a delivery fee"))
	}

	update := entity.ProfileUpdate{
		DisplayName:        trimmed(input.DisplayName),
		Phone:              trimmed(input.Phone),
		Address:            trimmed(input.Address),
		PhotoURL:           input.PhotoURL,
		Bio:                input.Bio,
		DeliveryFee:        input.DeliveryFee,
		OnboardingComplete: input.OnboardingComplete,
	}

	updated, err := srv.modify(ctx, actor.ID, func(a *entity.Actor) bool {
		update.Apply(a)

		return true
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Profile updated", slog.String("actor_id", actor.ID))

	return updated, nil
}

func (srv *actorService) AddPushToken(ctx context.Context, actor *entity.Actor, token string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("token is required"))
	}

	_, err := srv.modify(ctx, actor.ID, func(a *entity.Actor) bool {
		if !a.AddPushToken(token) {
			return false
		}
		// Keep the newest devices.
		if over := len(a.PushTokens) - maxPushTokens; over > 0 {
			a.PushTokens = a.PushTokens[over:]
		}

		return true
	})

	return err
}

// VerifyActor marks a cook or customer as verified and tells them so.
func (srv *actorService) VerifyActor(ctx context.Context, admin *entity.Actor, actorID string) (*entity.Actor, error) {
	if err := requireCapability(admin, entity.CapVerifyActors); err != nil {
		return nil, err
	}

	var (
		verified     *entity.Actor
		notification *entity.Notification
	)
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		notification = nil
		actorRepo := repoFactory.NewActorRepository()

		target, err := actorRepo.FindActorByID(ctx, actorID)
		if errors.Is(err, repository.ErrActorNotFound) {
			return errors.WithStack(domainerrors.ErrActorNotFound)
		}
		if err != nil {
			return errors.Wrap(err, "failed to find actor")
		}
		verified = target
		if target.Verified {
			return nil
		}

		now := srv.now()
		target.Verified = true
		target.UpdatedAt = now
		if err := actorRepo.UpdateActor(ctx, target); err != nil {
			return errors.Wrap(err, "failed to update actor")
		}

		notification = entity.NewNotification(
			target.ID,
			entity.NotificationSystem,
			"Account verified",
			"Your account was verified. You can now receive orders.",
			"",
			now,
		)

		return srv.fanout.create(ctx, repoFactory.NewNotificationRepository(), notification)
	})
	if err != nil {
		return nil, storeError(err, "failed to verify actor")
	}

	if notification != nil {
		srv.log(ctx).Info("Actor verified", slog.String("actor_id", actorID), slog.String("admin_id", admin.ID))
		srv.fanout.announce(ctx, notification)
	}

	return verified, nil
}

// modify runs a read-modify-write of one actor. mutate reports whether it changed anything.
func (srv *actorService) modify(ctx context.Context, id string, mutate func(a *entity.Actor) bool) (*entity.Actor, error) {
	var actor *entity.Actor
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		actorRepo := repoFactory.NewActorRepository()

		current, err := actorRepo.FindActorByID(ctx, id)
		if errors.Is(err, repository.ErrActorNotFound) {
			return errors.WithStack(domainerrors.ErrActorNotFound)
		}
		if err != nil {
			return errors.Wrap(err, "failed to find actor")
		}
		actor = current
		if !mutate(current) {
			return nil
		}
		current.UpdatedAt = srv.now()

		return errors.Wrap(actorRepo.UpdateActor(ctx, current), "failed to update actor")
	})
	if err != nil {
		return nil, storeError(err, "failed to update actor")
	}

	return actor, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)

	return &v
}
