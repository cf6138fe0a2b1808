package usecase

import (
	"context"

	"kitchenline/internal/domain/entity"
)

// FeedUsecase opens the live feeds an actor is allowed to see and caches the
// latest snapshot of each.
type FeedUsecase interface {
	// WatchOrders opens the actor's order feed and returns its purpose key.
	WatchOrders(ctx context.Context, actor *entity.Actor) (string, error)

	// WatchOrder opens a feed over one order the actor is a party of.
	WatchOrder(ctx context.Context, actor *entity.Actor, orderID string) (string, error)

	// WatchNotifications opens the actor's notification feed.
	WatchNotifications(ctx context.Context, actor *entity.Actor) (string, error)

	// LatestOrders returns the last snapshot of the actor's order feed.
	LatestOrders(actor *entity.Actor) ([]*entity.Order, bool)

	// LatestOrder returns the last snapshot of a single-order feed.
	LatestOrder(orderID string) (*entity.Order, bool)

	// LatestNotifications returns the last snapshot of the actor's notification feed.
	LatestNotifications(actor *entity.Actor) ([]*entity.Notification, bool)

	// Unwatch closes the feed held under purposeKey.
	Unwatch(purposeKey string)

	// LiveKeys lists the purpose keys of every live feed.
	LiveKeys() []string

	// Teardown closes every feed and forgets every cached snapshot.
	Teardown()
}
