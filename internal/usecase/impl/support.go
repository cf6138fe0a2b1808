// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"

	deliverycontext "kitchenline/internal/delivery/context"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct validation and reports failures as ErrValidationFailed.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.WithStack(domainerrors.ErrValidationFailed.WithDetails(err.Error()))
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Namespace()+" failed "+fe.Tag())
	}

	return errors.WithStack(domainerrors.ErrValidationFailed.WithDetails(strings.Join(fields, "; ")))
}

// requireActor rejects calls made without a resolved actor.
func requireActor(actor *entity.Actor) error {
	if actor == nil || actor.ID == "" {
		return errors.WithStack(domainerrors.ErrUnauthenticated)
	}

	return nil
}

// requireCapability rejects actors whose role lacks c.
func requireCapability(actor *entity.Actor, c entity.Capability) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.Role.Can(c) {
		return errors.WithStack(domainerrors.ErrUnauthorized.WithDetails(string(c)))
	}

	return nil
}

// storeError maps a repository failure to the domain taxonomy. Transient
// failures become ErrTransientStore so callers know a retry is safe.
func storeError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, repository.ErrStoreUnavailable) {
		return errors.Wrap(domainerrors.ErrTransientStore.WithDetails(err.Error()), msg)
	}

	return errors.Wrap(err, msg)
}

// fanout announces committed notifications. The durable record is already
// written when it runs; publishing is best effort.
type fanout struct {
	publisher service.EventPublisher
	metrics   service.Metrics
	logger    *slog.Logger
}

func newFanout(publisher service.EventPublisher, metrics service.Metrics, logger *slog.Logger) *fanout {
	if metrics == nil {
		metrics = service.NopMetrics{}
	}

	return &fanout{publisher: publisher, metrics: metrics, logger: logger}
}

// create writes one notification through repo. Callers inside a transaction
// pass the transaction's repository.
func (f *fanout) create(ctx context.Context, repo repository.NotificationRepository, n *entity.Notification) error {
	if err := repo.CreateNotification(ctx, n); err != nil {
		return errors.Wrap(err, "failed to create notification")
	}

	return nil
}

// announce publishes events for notifications whose transaction committed.
func (f *fanout) announce(ctx context.Context, notifications ...*entity.Notification) {
	logger := deliverycontext.GetLoggerOrDefault(ctx, f.logger)
	requestID := deliverycontext.GetRequestIDFromContext(ctx)

	for _, n := range notifications {
		f.metrics.NotificationCreated(string(n.Type))

		if f.publisher == nil {
			continue
		}
		event := &service.NotificationEvent{
			RequestID:      requestID,
			NotificationID: n.ID,
			RecipientID:    n.RecipientID,
			Type:           string(n.Type),
			Title:          n.Title,
			Message:        n.Message,
			OrderID:        n.OrderID,
		}
		if err := f.publisher.PublishNotificationEvent(ctx, event); err != nil {
			logger.Warn("Failed to publish notification event",
				slog.String("notification_id", n.ID),
				slog.String("recipient_id", n.RecipientID),
				slog.Any("error", err),
			)
		}
	}
}
