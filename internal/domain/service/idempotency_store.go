package service

import "context"

// IdempotencyStore remembers the outcome of a keyed operation so a retried
// request returns the first result instead of repeating the work.
type IdempotencyStore interface {
	// Reserve claims key. When key was already claimed it returns reserved=false
	// and the stored value, which is empty while the first attempt is still running.
	Reserve(ctx context.Context, key string) (existing string, reserved bool, err error)

	// Complete records value for a reserved key.
	Complete(ctx context.Context, key, value string) error

	// Release forgets a reserved key so the operation can be attempted again.
	Release(ctx context.Context, key string) error
}
