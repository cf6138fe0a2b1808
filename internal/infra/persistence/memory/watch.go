package memory

import (
	"context"
	"sync"

	"kitchenline/internal/domain/repository"
)

// watcher re-evaluates one live query whenever its collection changes and
// delivers the result from its own goroutine. Signals coalesce, so a burst of
// writes may surface as a single snapshot of the latest state.
type watcher struct {
	collection string
	signal     chan struct{}
	stop       chan struct{}
	evaluate   func(st *state) func()
}

func (s *Store) notify(dirty map[string]bool) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for w := range s.watchers {
		if dirty[w.collection] {
			w.poke()
		}
	}
}

func (w *watcher) poke() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (s *Store) run(w *watcher) {
	for {
		select {
		case <-w.stop:
			return
		case <-w.signal:
		}

		var deliver func()
		s.view(func(st *state) { deliver = w.evaluate(st) })

		select {
		case <-w.stop:
			return
		default:
			deliver()
		}
	}
}

// watch registers a live query. query runs under the store's read lock and
// must copy what it returns.
func watch[T any](ctx context.Context, s *Store, collection string, query func(st *state) []T, onSnapshot func([]T)) (repository.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := &watcher{
		collection: collection,
		signal:     make(chan struct{}, 1),
		stop:       make(chan struct{}),
		evaluate: func(st *state) func() {
			records := query(st)

			return func() { onSnapshot(records) }
		},
	}

	s.watchMu.Lock()
	s.watchers[w] = struct{}{}
	s.watchMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.watchMu.Lock()
			delete(s.watchers, w)
			s.watchMu.Unlock()
			close(w.stop)
		})
	}

	go s.run(w)
	w.poke()

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-w.stop:
		}
	}()

	return unsubscribe, nil
}

// Watchers returns the number of open live queries.
func (s *Store) Watchers() int {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	return len(s.watchers)
}
