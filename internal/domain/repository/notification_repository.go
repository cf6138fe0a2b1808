package repository

import (
	"context"
	"errors"

	"kitchenline/internal/domain/entity"
)

// Domain-specific errors for notification persistence.
var (
	// ErrNotificationNotFound is returned when a notification is not found.
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationQuery filters notification reads and feeds.
// Results are ordered by creation time, newest first.
type NotificationQuery struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
}

// NotificationRepository defines the interface for notification-related store operations.
type NotificationRepository interface {
	// CreateNotification persists a new notification and assigns its ID. It never upserts.
	CreateNotification(ctx context.Context, notification *entity.Notification) error

	// FindNotificationByID retrieves a notification by its unique ID.
	FindNotificationByID(ctx context.Context, id string) (*entity.Notification, error)

	// SetNotificationRead sets the read flag of one notification.
	SetNotificationRead(ctx context.Context, id string, read bool) error

	// MarkAllRead marks every unread notification of recipientID as read and returns how many changed.
	MarkAllRead(ctx context.Context, recipientID string) (int, error)

	// ListNotifications runs a one-shot query.
	ListNotifications(ctx context.Context, query NotificationQuery) ([]*entity.Notification, error)

	// CountUnread returns the number of unread notifications of recipientID.
	CountUnread(ctx context.Context, recipientID string) (int, error)

	// WatchNotifications opens a live query.
	WatchNotifications(ctx context.Context, query NotificationQuery, onSnapshot func([]*entity.Notification), onError func(error)) (Unsubscribe, error)
}
