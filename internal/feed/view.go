package feed

import (
	"context"
	"sync"
	"time"

	"kitchenline/internal/domain/repository"
	"kitchenline/internal/errors"
)

// View derives a result from several independent feeds. Every feed is opened
// up front at the same level and keeps its latest snapshot in a slot; any slot
// update recomputes the result from all slots as they currently are, so a
// result may combine snapshots of different ages.
type View[R any] struct {
	name     string
	registry *Registry
	compute  func() R
	onResult func(R)

	mu        sync.Mutex
	handles   []Handle
	result    R
	hasResult bool
	computed  int
	closed    bool
}

// Slot holds the latest snapshot of one feed of a View.
type Slot[T any] struct {
	name      string
	latest    []T
	fresh     bool
	updatedAt time.Time
}

// NewView creates a View. compute runs with the view locked and may read any
// slot through Latest. onResult, if set, receives each new result in order.
func NewView[R any](r *Registry, name string, compute func() R, onResult func(R)) *View[R] {
	return &View[R]{
		name:     name,
		registry: r,
		compute:  compute,
		onResult: onResult,
	}
}

// AddSlot opens one feed of v under the purpose key "<view name>/<slot name>".
func AddSlot[T any, R any](ctx context.Context, v *View[R], name string, source repository.Source[T]) (*Slot[T], error) {
	slot := &Slot[T]{name: name}

	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return nil, errors.Errorf("view %s is closed", v.name)
	}

	sub, err := Open(ctx, v.registry, v.name+"/"+name, source, func(records []T) {
		v.update(func() {
			slot.latest = records
			slot.fresh = true
			slot.updatedAt = time.Now()
		})
	})
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.handles = append(v.handles, sub)
	v.mu.Unlock()

	return slot, nil
}

// Latest returns the slot's last snapshot and whether one has arrived yet.
// It is meant to be called from the view's compute function.
func (s *Slot[T]) Latest() ([]T, bool) {
	return s.latest, s.fresh
}

// UpdatedAt returns when the slot last received a snapshot.
func (s *Slot[T]) UpdatedAt() time.Time {
	return s.updatedAt
}

// Result returns the most recent derived result.
func (v *View[R]) Result() (R, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.result, v.hasResult
}

// Computations returns how many times the result was recomputed.
func (v *View[R]) Computations() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.computed
}

// Refresh recomputes the result from the slots as they are.
func (v *View[R]) Refresh() {
	v.update(func() {})
}

// Close closes every feed of the view.
func (v *View[R]) Close() {
	v.mu.Lock()
	v.closed = true
	handles := v.handles
	v.handles = nil
	v.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}

func (v *View[R]) update(write func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}

	write()
	v.result = v.compute()
	v.hasResult = true
	v.computed++

	if v.onResult != nil {
		v.onResult(v.result)
	}
}
