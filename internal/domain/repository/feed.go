// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"errors"
)

// ErrStoreUnavailable marks a failure that is safe to retry: the store could
// not be reached, timed out, or aborted the operation under contention.
// Backends wrap their transport errors with it.
var ErrStoreUnavailable = errors.New("document store unavailable")

// Unsubscribe stops a live query. Calling it more than once is a no-op.
type Unsubscribe func()

// Source opens one live query against the store. onSnapshot receives the full,
// ordered set of matching records every time it changes, starting with the
// current state. onError is called when the feed breaks after it was opened;
// no further snapshots arrive from that feed afterwards.
type Source[T any] func(ctx context.Context, onSnapshot func(records []T), onError func(err error)) (Unsubscribe, error)

// Unavailable marks err as transient. The result matches both
// ErrStoreUnavailable and err under errors.Is.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}

	return &unavailableError{err: err}
}

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string { return e.err.Error() }

func (e *unavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.err}
}
