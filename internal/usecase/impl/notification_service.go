package impl

import (
	"context"
	"log/slog"
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

const (
	defaultNotificationLimit = 50
	chatTitleMaxRunes        = 60
)

type notificationService struct {
	txManager        repository.TransactionManager
	notificationRepo repository.NotificationRepository
	fanout           *fanout
	logger           *slog.Logger
	now              func() time.Time
}

// NotificationServiceParams holds dependencies for NotificationService, injected by Fx.
type NotificationServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	NotificationRepo repository.NotificationRepository
	Publisher        service.EventPublisher `optional:"true"`
	Metrics          service.Metrics        `optional:"true"`
	Logger           *slog.Logger
}

// NewNotificationService creates a new notification service instance
func NewNotificationService(params NotificationServiceParams) usecase.NotificationUsecase {
	return &notificationService{
		txManager:        params.TxManager,
		notificationRepo: params.NotificationRepo,
		fanout:           newFanout(params.Publisher, params.Metrics, params.Logger),
		logger:           params.Logger,
		now:              time.Now,
	}
}

func (s *notificationService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

func (s *notificationService) Notify(ctx context.Context, input usecase.NotifyInput) (string, error) {
	if err := validateInput(input); err != nil {
		return "", err
	}
	if !input.Type.IsValid() {
		return "", errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("unknown notification type " + string(input.Type)))
	}

	n := entity.NewNotification(input.RecipientID, input.Type, input.Title, input.Message, input.OrderID, s.now())
	if err := s.fanout.create(ctx, s.notificationRepo, n); err != nil {
		return "", storeError(err, "failed to notify")
	}

	s.fanout.announce(ctx, n)

	return n.ID, nil
}

// NotifyChatMessage lets either party of an order message the other one.
func (s *notificationService) NotifyChatMessage(ctx context.Context, actor *entity.Actor, input usecase.ChatMessageInput) (*entity.Notification, error) {
	if err := requireCapability(actor, entity.CapChatOnOrder); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var n *entity.Notification
	err := s.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		order, err := repoFactory.NewOrderRepository().FindOrderByID(ctx, input.OrderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return errors.WithStack(domainerrors.ErrOrderNotFound)
		}
		if err != nil {
			return errors.Wrap(err, "failed to find order")
		}
		if !order.IsParty(actor.ID) {
			return errors.WithStack(domainerrors.ErrOrderNotFound)
		}

		recipient := order.Counterparty(actor.ID)
		if recipient == "" {
			return errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("order has no counterparty"))
		}

		n = entity.NewNotification(
			recipient,
			entity.NotificationChatMessage,
			chatTitle(actor),
			input.Message,
			order.ID,
			s.now(),
		)

		return s.fanout.create(ctx, repoFactory.NewNotificationRepository(), n)
	})
	if err != nil {
		return nil, storeError(err, "failed to send chat message")
	}

	s.log(ctx).Info("Chat message sent", slog.String("order_id", input.OrderID), slog.String("recipient_id", n.RecipientID))
	s.fanout.announce(ctx, n)

	return n, nil
}

func chatTitle(sender *entity.Actor) string {
	title := []rune("Message from " + entity.PartyName(sender))
	if len(title) > chatTitleMaxRunes {
		title = title[:chatTitleMaxRunes]
	}

	return string(title)
}

func (s *notificationService) MarkRead(ctx context.Context, actor *entity.Actor, notificationID string) error {
	return s.setRead(ctx, actor, notificationID, true)
}

func (s *notificationService) MarkUnread(ctx context.Context, actor *entity.Actor, notificationID string) error {
	return s.setRead(ctx, actor, notificationID, false)
}

// setRead only writes when the flag actually changes.
func (s *notificationService) setRead(ctx context.Context, actor *entity.Actor, notificationID string, read bool) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	n, err := s.notificationRepo.FindNotificationByID(ctx, notificationID)
	if errors.Is(err, repository.ErrNotificationNotFound) {
		return errors.WithStack(domainerrors.ErrNotificationNotFound)
	}
	if err != nil {
		return storeError(err, "failed to find notification")
	}
	if n.RecipientID != actor.ID {
		return errors.WithStack(domainerrors.ErrNotificationNotFound)
	}
	if n.IsRead == read {
		return nil
	}

	if err := s.notificationRepo.SetNotificationRead(ctx, notificationID, read); err != nil {
		return storeError(err, "failed to update notification")
	}

	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, actor *entity.Actor) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}

	changed, err := s.notificationRepo.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, storeError(err, "failed to mark notifications read")
	}
	if changed > 0 {
		s.log(ctx).Debug("Marked notifications read", slog.String("recipient_id", actor.ID), slog.Int("count", changed))
	}

	return changed, nil
}

func (s *notificationService) List(ctx context.Context, actor *entity.Actor, input usecase.ListNotificationsInput) ([]*entity.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = defaultNotificationLimit
	}

	notifications, err := s.notificationRepo.ListNotifications(ctx, repository.NotificationQuery{
		RecipientID: actor.ID,
		UnreadOnly:  input.UnreadOnly,
		Limit:       limit,
	})
	if err != nil {
		return nil, storeError(err, "failed to list notifications")
	}

	return notifications, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, actor *entity.Actor) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}

	count, err := s.notificationRepo.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, storeError(err, "failed to count unread notifications")
	}

	return count, nil
}
