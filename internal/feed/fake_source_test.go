package feed

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
)

type fakeListener[T any] struct {
	onSnapshot func([]T)
	onError    func(error)
}

// fakeFeed is an in-test change feed whose emissions are driven by the test.
type fakeFeed[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]fakeListener[T]
	opens     int
	failOpens int
	openErr   error
	initial   []T
}

func newFakeFeed[T any]() *fakeFeed[T] {
	return &fakeFeed[T]{listeners: make(map[int]fakeListener[T])}
}

func (f *fakeFeed[T]) source() repository.Source[T] {
	return func(_ context.Context, onSnapshot func([]T), onError func(error)) (repository.Unsubscribe, error) {
		f.mu.Lock()
		f.opens++
		if f.openErr != nil {
			err := f.openErr
			f.mu.Unlock()

			return nil, err
		}
		if f.failOpens > 0 {
			f.failOpens--
			f.mu.Unlock()

			return nil, repository.ErrStoreUnavailable
		}
		id := f.nextID
		f.nextID++
		f.listeners[id] = fakeListener[T]{onSnapshot: onSnapshot, onError: onError}
		initial := f.initial
		f.mu.Unlock()

		if initial != nil {
			onSnapshot(initial)
		}

		var once sync.Once

		return func() {
			once.Do(func() {
				f.mu.Lock()
				delete(f.listeners, id)
				f.mu.Unlock()
			})
		}, nil
	}
}

func (f *fakeFeed[T]) emit(records []T) {
	for _, l := range f.snapshotListeners() {
		l.onSnapshot(records)
	}
}

func (f *fakeFeed[T]) fail(err error) {
	for _, l := range f.snapshotListeners() {
		l.onError(err)
	}
}

func (f *fakeFeed[T]) snapshotListeners() []fakeListener[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]fakeListener[T], 0, len(f.listeners))
	for _, l := range f.listeners {
		out = append(out, l)
	}

	return out
}

func (f *fakeFeed[T]) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.listeners)
}

func (f *fakeFeed[T]) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.opens
}

func newTestRegistry() *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return newRegistry(logger, service.NopMetrics{}, BackoffConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	})
}
