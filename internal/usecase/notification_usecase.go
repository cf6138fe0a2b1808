package usecase

import (
	"context"

	"kitchenline/internal/domain/entity"
)

// NotifyInput describes one notification to create.
type NotifyInput struct {
	RecipientID string                  `validate:"required"`
	Type        entity.NotificationType `validate:"required"`
	Title       string                  `validate:"required,max=200"`
	Message     string                  `validate:"max=2000"`
	OrderID     string
}

// ChatMessageInput is a message from one party of an order to the other.
type ChatMessageInput struct {
	OrderID string `validate:"required"`
	Message string `validate:"required,max=2000"`
}

// ListNotificationsInput filters the actor's notifications.
type ListNotificationsInput struct {
	UnreadOnly bool
	Limit      int `validate:"gte=0,lte=500"`
}

// NotificationUsecase defines the interface for notification management use cases
type NotificationUsecase interface {
	// Notify always creates a new unread notification and returns its ID.
	Notify(ctx context.Context, input NotifyInput) (string, error)

	// NotifyChatMessage sends a chat message to the counterparty of an order.
	NotifyChatMessage(ctx context.Context, actor *entity.Actor, input ChatMessageInput) (*entity.Notification, error)

	// MarkRead marks one of the actor's notifications as read. Idempotent.
	MarkRead(ctx context.Context, actor *entity.Actor, notificationID string) error

	// MarkUnread marks one of the actor's notifications as unread. Idempotent.
	MarkUnread(ctx context.Context, actor *entity.Actor, notificationID string) error

	// MarkAllRead marks every notification of the actor as read and returns how many changed.
	MarkAllRead(ctx context.Context, actor *entity.Actor) (int, error)

	// List returns the actor's notifications, newest first.
	List(ctx context.Context, actor *entity.Actor, input ListNotificationsInput) ([]*entity.Notification, error)

	// UnreadCount returns how many of the actor's notifications are unread.
	UnreadCount(ctx context.Context, actor *entity.Actor) (int, error)
}
