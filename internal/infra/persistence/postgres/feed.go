package postgres

import (
	"context"
	"reflect"
	"sync"
	"time"

	"kitchenline/internal/domain/repository"
)

const defaultPollInterval = time.Second

// poll emulates a live query by re-running load every interval and emitting
// the result whenever it differs from the previous one. The first load runs
// before poll returns so an unreachable database fails the open.
func poll[T any](ctx context.Context, interval time.Duration, load func(ctx context.Context) ([]T, error), onSnapshot func([]T), onError func(error)) (repository.Unsubscribe, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	initial, err := load(ctx)
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() { once.Do(cancel) }

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev := initial
		onSnapshot(initial)

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			}

			cur, err := load(pollCtx)
			if pollCtx.Err() != nil {
				return
			}
			if err != nil {
				onError(err)

				return
			}
			if reflect.DeepEqual(prev, cur) {
				continue
			}
			prev = cur
			onSnapshot(cur)
		}
	}()

	return unsubscribe, nil
}
