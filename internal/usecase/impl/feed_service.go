package impl

import (
	"context"
	"log/slog"
	"sync"

	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/feed"
	"kitchenline/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Purpose key prefixes. A key is "<prefix>:<subject id>".
const (
	purposeOrdersForActor        = "orders-for-actor"
	purposeOrder                 = "order"
	purposeNotificationsForActor = "notifications-for-actor"

	feedOrderLimit        = 200
	feedNotificationLimit = 100
)

// feedService opens actor-scoped feeds through the registry and keeps the
// latest snapshot of each purpose.
type feedService struct {
	registry  *feed.Registry
	orderRepo repository.OrderRepository
	notifRepo repository.NotificationRepository
	logger    *slog.Logger

	mu      sync.Mutex
	handles map[string]feed.Handle
	latest  map[string]any
}

// FeedServiceParams holds dependencies for FeedService, injected by Fx.
type FeedServiceParams struct {
	fx.In

	Registry         *feed.Registry
	OrderRepo        repository.OrderRepository
	NotificationRepo repository.NotificationRepository
	Logger           *slog.Logger
}

// NewFeedService is the constructor for feedService.
func NewFeedService(params FeedServiceParams) usecase.FeedUsecase {
	return &feedService{
		registry:  params.Registry,
		orderRepo: params.OrderRepo,
		notifRepo: params.NotificationRepo,
		logger:    params.Logger,
		handles:   make(map[string]feed.Handle),
		latest:    make(map[string]any),
	}
}

func purposeKey(prefix, id string) string {
	return prefix + ":" + id
}

func (s *feedService) WatchOrders(ctx context.Context, actor *entity.Actor) (string, error) {
	if err := requireActor(actor); err != nil {
		return "", err
	}

	query, err := ordersQueryFor(actor)
	if err != nil {
		return "", err
	}
	query.Limit = feedOrderLimit

	key := purposeKey(purposeOrdersForActor, actor.ID)

	return key, openFeed(ctx, s, key, s.orderSource(query))
}

// WatchOrder checks party membership once, when the feed opens.
func (s *feedService) WatchOrder(ctx context.Context, actor *entity.Actor, orderID string) (string, error) {
	if err := requireActor(actor); err != nil {
		return "", err
	}

	order, err := s.orderRepo.FindOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return "", errors.WithStack(domainerrors.ErrOrderNotFound)
	}
	if err != nil {
		return "", storeError(err, "failed to find order")
	}
	if !order.IsParty(actor.ID) && !actor.Role.Can(entity.CapWatchAllOrders) {
		return "", errors.WithStack(domainerrors.ErrOrderNotFound)
	}

	key := purposeKey(purposeOrder, orderID)

	return key, openFeed(ctx, s, key, s.orderSource(repository.OrderQuery{OrderID: orderID, Limit: 1}))
}

func (s *feedService) WatchNotifications(ctx context.Context, actor *entity.Actor) (string, error) {
	if err := requireActor(actor); err != nil {
		return "", err
	}

	query := repository.NotificationQuery{RecipientID: actor.ID, Limit: feedNotificationLimit}
	key := purposeKey(purposeNotificationsForActor, actor.ID)

	source := func(ctx context.Context, onSnapshot func([]*entity.Notification), onError func(error)) (repository.Unsubscribe, error) {
		return s.notifRepo.WatchNotifications(ctx, query, onSnapshot, onError)
	}

	return key, openFeed(ctx, s, key, source)
}

func (s *feedService) orderSource(query repository.OrderQuery) repository.Source[*entity.Order] {
	return func(ctx context.Context, onSnapshot func([]*entity.Order), onError func(error)) (repository.Unsubscribe, error) {
		return s.orderRepo.WatchOrders(ctx, query, onSnapshot, onError)
	}
}

// openFeed replaces any live feed held under key. The cached snapshot of the
// old feed stays until the new one delivers.
func openFeed[T any](ctx context.Context, s *feedService, key string, source repository.Source[T]) error {
	var sub *feed.Subscription[T]
	var subMu sync.Mutex

	opened, err := feed.Open(ctx, s.registry, key, source, func(records []T) {
		subMu.Lock()
		current := sub
		subMu.Unlock()

		s.mu.Lock()
		defer s.mu.Unlock()
		// A snapshot racing with Teardown belongs to a closed feed.
		if current != nil && current.Closed() {
			return
		}
		s.latest[key] = records
	})
	if err != nil {
		return storeError(err, "failed to open feed "+key)
	}

	subMu.Lock()
	sub = opened
	subMu.Unlock()

	s.mu.Lock()
	s.handles[key] = opened
	s.mu.Unlock()

	s.logger.Debug("Feed opened", slog.String("purpose", key))

	return nil
}

func (s *feedService) LatestOrders(actor *entity.Actor) ([]*entity.Order, bool) {
	if actor == nil {
		return nil, false
	}

	return latest[*entity.Order](s, purposeKey(purposeOrdersForActor, actor.ID))
}

func (s *feedService) LatestOrder(orderID string) (*entity.Order, bool) {
	orders, ok := latest[*entity.Order](s, purposeKey(purposeOrder, orderID))
	if !ok || len(orders) == 0 {
		return nil, false
	}

	return orders[0], true
}

func (s *feedService) LatestNotifications(actor *entity.Actor) ([]*entity.Notification, bool) {
	if actor == nil {
		return nil, false
	}

	return latest[*entity.Notification](s, purposeKey(purposeNotificationsForActor, actor.ID))
}

// latest returns the cached snapshot of a live feed.
func latest[T any](s *feedService, key string) ([]T, bool) {
	if !s.registry.Live(key) {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.latest[key].([]T)

	return records, ok
}

// Unwatch stops the feed before dropping its snapshot, so a delivery in
// flight cannot repopulate the cache.
func (s *feedService) Unwatch(purposeKey string) {
	s.mu.Lock()
	handle := s.handles[purposeKey]
	delete(s.handles, purposeKey)
	s.mu.Unlock()

	s.registry.Close(handle)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, reopened := s.handles[purposeKey]; !reopened {
		delete(s.latest, purposeKey)
	}
}

func (s *feedService) LiveKeys() []string {
	return s.registry.Keys()
}

func (s *feedService) Teardown() {
	s.registry.CloseAll()

	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.handles)
	clear(s.latest)

	s.logger.Debug("Feeds torn down")
}
