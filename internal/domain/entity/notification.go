package entity

import "time"

// NotificationType classifies a notification record.
type NotificationType string

const (
	NotificationOrderStatus NotificationType = "order-status"
	NotificationNewOrder    NotificationType = "new-order"
	NotificationChatMessage NotificationType = "chat-message"
	NotificationSystem      NotificationType = "system"
)

// IsValid checks if the NotificationType is a valid value.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationOrderStatus, NotificationNewOrder, NotificationChatMessage, NotificationSystem:
		return true
	default:
		return false
	}
}

// Notification is a durable, per-recipient message. Only the read flag ever changes.
type Notification struct {
	ID          string           // Store-assigned identifier.
	RecipientID string           // Actor the notification is addressed to.
	Type        NotificationType // Classification used by clients for icons and routing.
	Title       string           // Short headline.
	Message     string           // Body text.
	OrderID     string           // Related order, empty when the notification is not about an order.
	IsRead      bool             // False on creation, toggled only by the recipient.
	CreatedAt   time.Time        // Timestamp of creation.
}

// NewNotification builds an unread notification. The ID is assigned by the store.
func NewNotification(recipientID string, typ NotificationType, title, message, orderID string, now time.Time) *Notification {
	return &Notification{
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
		OrderID:     orderID,
		CreatedAt:   now,
	}
}
