package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/errors"

	"github.com/cenkalti/backoff/v4"
)

var errSubscriptionClosed = errors.New("subscription closed")

// Handle is the type-erased view of a live subscription held by the Registry.
type Handle interface {
	Key() string
	Close()
	Stop()
	Closed() bool
}

// Subscription wraps one live query. Snapshots are handed to the callback in
// the order the store emits them, one at a time. Once Close has been called
// every snapshot that has not started delivery is dropped.
//
// Close does not wait for a callback that is already running, so it may be
// called from inside the callback. Stop also waits for that callback to
// return and must only be called from outside it.
type Subscription[T any] struct {
	key        string
	kind       string
	source     repository.Source[T]
	onSnapshot func([]T)
	registry   *Registry
	logger     *slog.Logger
	metrics    service.Metrics
	backoff    BackoffConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	unsubscribe repository.Unsubscribe
	generation  uint64
	lastErr     error

	deliverMu sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	snapshots atomic.Int64
}

func newSubscription[T any](ctx context.Context, r *Registry, key string, source repository.Source[T], onSnapshot func([]T)) *Subscription[T] {
	// Detach from the caller's request context: the subscription lives until Close.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	return &Subscription[T]{
		key:        key,
		kind:       purposeKind(key),
		source:     source,
		onSnapshot: onSnapshot,
		registry:   r,
		logger:     r.logger.With(slog.String("purpose", key)),
		metrics:    r.metrics,
		backoff:    r.backoff,
		ctx:        subCtx,
		cancel:     cancel,
	}
}

// Key returns the purpose key the subscription was opened under.
func (s *Subscription[T]) Key() string {
	return s.key
}

// Closed reports whether Close has been called.
func (s *Subscription[T]) Closed() bool {
	return s.closed.Load()
}

// Snapshots returns how many snapshots were handed to the callback.
func (s *Subscription[T]) Snapshots() int64 {
	return s.snapshots.Load()
}

// Err returns the last feed error, or nil while the feed is healthy.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

// Close stops the feed. It is safe to call more than once and from inside the callback.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()

		s.mu.Lock()
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		s.generation++
		s.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}

		s.registry.release(s)
		s.metrics.FeedClosed(s.kind)
		s.logger.Debug("Subscription closed", slog.Int64("snapshots", s.snapshots.Load()))
	})
}

// Stop closes the subscription and waits until no callback is running.
// After Stop returns the callback is never invoked again.
func (s *Subscription[T]) Stop() {
	s.Close()

	s.deliverMu.Lock()
	s.deliverMu.Unlock() //nolint:staticcheck // empty critical section waits out a delivery
}

// start makes the first attempt inline so permanent errors reach the caller.
// Transient failures keep retrying in the background.
func (s *Subscription[T]) start() error {
	err := s.attempt()
	switch {
	case err == nil, errors.Is(err, errSubscriptionClosed):
		return nil
	case IsTransient(err):
		s.setErr(err)
		s.logger.Warn("Subscription open failed, retrying", slog.Any("error", err))
		go s.reconnect()

		return nil
	default:
		return err
	}
}

func (s *Subscription[T]) attempt() error {
	if s.closed.Load() {
		return errSubscriptionClosed
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	unsubscribe, err := s.source(s.ctx,
		func(records []T) { s.deliver(gen, records) },
		func(feedErr error) { s.handleFeedError(gen, feedErr) },
	)
	if err != nil {
		return errors.Wrapf(err, "open feed %s", s.key)
	}

	s.mu.Lock()
	if s.closed.Load() || s.generation != gen {
		s.mu.Unlock()
		unsubscribe()

		return errSubscriptionClosed
	}
	s.unsubscribe = unsubscribe
	s.lastErr = nil
	s.mu.Unlock()

	return nil
}

func (s *Subscription[T]) deliver(gen uint64, records []T) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	current := s.generation
	s.mu.Unlock()

	if s.closed.Load() || gen != current {
		s.metrics.SnapshotDropped(s.kind)

		return
	}

	s.snapshots.Add(1)
	s.metrics.SnapshotDelivered(s.kind)
	s.onSnapshot(records)
}

func (s *Subscription[T]) handleFeedError(gen uint64, feedErr error) {
	s.mu.Lock()
	if s.closed.Load() || gen != s.generation {
		s.mu.Unlock()

		return
	}
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.generation++
	s.lastErr = feedErr
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	s.logger.Warn("Subscription feed broke, re-subscribing", slog.Any("error", feedErr))
	go s.reconnect()
}

func (s *Subscription[T]) reconnect() {
	op := func() error {
		err := s.attempt()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errSubscriptionClosed):
			return backoff.Permanent(err)
		case IsTransient(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		s.setErr(err)
		s.logger.Warn("Re-subscribe attempt failed", slog.Duration("wait", wait), slog.Any("error", err))
	}

	err := backoff.RetryNotify(op, s.backoff.newBackOff(s.ctx), notify)
	switch {
	case err == nil:
		s.metrics.FeedResubscribed(s.kind)
		s.logger.Info("Subscription re-established")
	case errors.Is(err, errSubscriptionClosed), s.closed.Load():
	default:
		s.setErr(err)
		s.logger.Error("Subscription gave up re-subscribing", slog.Any("error", err))
	}
}

func (s *Subscription[T]) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// purposeKind strips the actor-specific suffix of a purpose key for metric labels.
func purposeKind(key string) string {
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}

	return key
}
