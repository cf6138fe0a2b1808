// Package feed manages live store queries: one Subscription per purpose, a
// Registry enforcing that rule, and Views composing several feeds.
package feed

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"kitchenline/config"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"

	"go.uber.org/fx"
)

// Registry tracks the live subscriptions of one owner and guarantees at most
// one live subscription per purpose key. It never closes handles on its own
// apart from replacing one purpose's handle with a newer one.
type Registry struct {
	logger  *slog.Logger
	metrics service.Metrics
	backoff BackoffConfig

	// openMu serializes Open so the old handle of a purpose is closed before
	// the new one reaches the store.
	openMu sync.Mutex

	mu   sync.Mutex
	live map[string]Handle
}

// RegistryParams holds dependencies for the Registry, injected by Fx.
type RegistryParams struct {
	fx.In

	Config  *config.Config
	Logger  *slog.Logger
	Metrics service.Metrics `optional:"true"`
}

// NewRegistry creates an empty Registry.
func NewRegistry(params RegistryParams) *Registry {
	return newRegistry(params.Logger, params.Metrics, BackoffFromConfig(params.Config))
}

func newRegistry(logger *slog.Logger, metrics service.Metrics, backoffCfg BackoffConfig) *Registry {
	if metrics == nil {
		metrics = service.NopMetrics{}
	}

	return &Registry{
		logger:  logger,
		metrics: metrics,
		backoff: backoffCfg,
		live:    make(map[string]Handle),
	}
}

// Open starts a subscription for purposeKey. A live subscription already held
// under the same key is closed first. The returned error is only non-nil for
// permanent failures; transient ones are retried in the background.
//
// Open must not be called from inside another subscription's callback. Views
// compose several feeds without nesting.
func Open[T any](ctx context.Context, r *Registry, purposeKey string, source repository.Source[T], onSnapshot func([]T)) (*Subscription[T], error) {
	r.openMu.Lock()
	defer r.openMu.Unlock()

	sub := newSubscription(ctx, r, purposeKey, source, onSnapshot)

	r.mu.Lock()
	previous := r.live[purposeKey]
	r.live[purposeKey] = sub
	r.mu.Unlock()

	if previous != nil {
		r.logger.Debug("Replacing live subscription", slog.String("purpose", purposeKey))
		previous.Close()
	}

	r.metrics.FeedOpened(sub.kind)

	if err := sub.start(); err != nil {
		sub.Close()

		return nil, err
	}

	return sub, nil
}

// Close stops h and waits for its callback to finish. Closing an already
// closed handle is a no-op. Close, CloseAll and ClosePrefix must not be called
// from inside a subscription callback; close the Subscription itself there.
func (r *Registry) Close(h Handle) {
	if h == nil {
		return
	}
	h.Stop()
}

// CloseAll stops every live handle. Owners call it when their lifetime ends.
func (r *Registry) CloseAll() {
	for _, h := range r.snapshotHandles("") {
		h.Stop()
	}
}

// ClosePrefix stops every live handle whose purpose key starts with prefix.
func (r *Registry) ClosePrefix(prefix string) {
	for _, h := range r.snapshotHandles(prefix) {
		h.Stop()
	}
}

// Live reports whether purposeKey currently has a live handle.
func (r *Registry) Live(purposeKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.live[purposeKey]

	return ok
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.live)
}

// Keys returns the sorted purpose keys of all live handles.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Sorted(maps.Keys(r.live))
}

func (r *Registry) snapshotHandles(prefix string) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]Handle, 0, len(r.live))
	for key, h := range r.live {
		if strings.HasPrefix(key, prefix) {
			handles = append(handles, h)
		}
	}

	return handles
}

// release forgets h if it is still the live handle of its purpose.
func (r *Registry) release(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.live[h.Key()]; ok && current == h {
		delete(r.live, h.Key())
	}
}
