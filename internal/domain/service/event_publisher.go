package service

import (
	"context"
)

// NotificationEvent announces a committed notification record to the push relay.
type NotificationEvent struct {
	RequestID      string `json:"request_id,omitempty"` // For distributed tracing
	NotificationID string `json:"notification_id"`
	RecipientID    string `json:"recipient_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	OrderID        string `json:"order_id,omitempty"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishNotificationEvent publishes a notification event for async processing
	PublishNotificationEvent(ctx context.Context, event *NotificationEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
