package service

import "context"

// PushService defines the interface for device push delivery.
type PushService interface {
	// SendBatchNotification sends one push message to multiple device tokens.
	// Returns success count, failure count, list of invalid tokens, and error.
	SendBatchNotification(ctx context.Context, tokens []string, title, body string, data map[string]string) (successCount, failureCount int, invalidTokens []string, err error)
}
