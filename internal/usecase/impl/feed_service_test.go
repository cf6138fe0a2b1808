package impl

import (
	"context"
	"testing"
	"time"

	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/feed"
	"kitchenline/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFeedService(st *testStore) (usecase.FeedUsecase, *feed.Registry) {
	registry := feed.NewRegistry(feed.RegistryParams{Config: newTestConfig(), Logger: newDiscardLogger()})

	return NewFeedService(FeedServiceParams{
		Registry:         registry,
		OrderRepo:        st.orders,
		NotificationRepo: st.notifications,
		Logger:           newDiscardLogger(),
	}), registry
}

func TestFeedService_WatchOrders(t *testing.T) {
	st := newTestStore()
	ben := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	ana := st.seedActor(t, entity.RoleCustomer, "Ana", true)
	cook := st.seedActor(t, entity.RoleCook, "May", true)
	st.seedOrder(t, ben, cook, entity.OrderStatusPending)
	st.seedOrder(t, ana, cook, entity.OrderStatusPending)
	svc, registry := newTestFeedService(st)
	t.Cleanup(svc.Teardown)

	key, err := svc.WatchOrders(context.Background(), ben)
	require.NoError(t, err)
	assert.Equal(t, "orders-for-actor:"+ben.ID, key)

	require.Eventually(t, func() bool {
		orders, ok := svc.LatestOrders(ben)
		return ok && len(orders) == 1
	}, testWait, testTick)

	st.seedOrder(t, ben, cook, entity.OrderStatusPending)
	require.Eventually(t, func() bool {
		orders, _ := svc.LatestOrders(ben)
		return len(orders) == 2
	}, testWait, testTick)

	// Re-watching the same purpose replaces the live feed.
	_, err = svc.WatchOrders(context.Background(), ben)
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Len())
	assert.Eventually(t, func() bool { return st.store.Watchers() == 1 }, testWait, testTick)

	_, err = svc.WatchOrders(context.Background(), cook)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		orders, _ := svc.LatestOrders(cook)
		return len(orders) == 3
	}, testWait, testTick)
	assert.ElementsMatch(t, []string{"orders-for-actor:" + ben.ID, "orders-for-actor:" + cook.ID}, svc.LiveKeys())

	_, ok := svc.LatestOrders(ana)
	assert.False(t, ok, "no feed was opened for ana")
}

func TestFeedService_WatchOrderChecksParty(t *testing.T) {
	st := newTestStore()
	ben := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	ana := st.seedActor(t, entity.RoleCustomer, "Ana", true)
	cook := st.seedActor(t, entity.RoleCook, "May", true)
	admin := st.seedActor(t, entity.RoleAdmin, "Ops", true)
	order := st.seedOrder(t, ben, cook, entity.OrderStatusPending)
	svc, _ := newTestFeedService(st)
	t.Cleanup(svc.Teardown)
	ctx := context.Background()

	_, err := svc.WatchOrder(ctx, ana, order.ID)
	assert.ErrorIs(t, err, domainerrors.ErrOrderNotFound)
	_, err = svc.WatchOrder(ctx, ben, "missing")
	assert.ErrorIs(t, err, domainerrors.ErrOrderNotFound)

	key, err := svc.WatchOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "order:"+order.ID, key)

	require.Eventually(t, func() bool {
		got, ok := svc.LatestOrder(order.ID)
		return ok && got.Status == entity.OrderStatusPending
	}, testWait, testTick)

	order.ApplyStatus(entity.OrderStatusAccepted, time.Now())
	require.NoError(t, st.orders.UpdateOrderStatus(ctx, order, entity.OrderStatusPending))
	require.Eventually(t, func() bool {
		got, ok := svc.LatestOrder(order.ID)
		return ok && got.Status == entity.OrderStatusAccepted
	}, testWait, testTick)

	svc.Unwatch(key)
	_, ok := svc.LatestOrder(order.ID)
	assert.False(t, ok)
	assert.Empty(t, svc.LiveKeys())
}

func TestFeedService_TeardownClosesEverything(t *testing.T) {
	st := newTestStore()
	ben := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "May", true)
	order := st.seedOrder(t, ben, cook, entity.OrderStatusPending)
	notifications := newTestNotificationService(st, nil)
	svc, registry := newTestFeedService(st)
	ctx := context.Background()

	_, err := svc.WatchOrders(ctx, ben)
	require.NoError(t, err)
	_, err = svc.WatchOrder(ctx, ben, order.ID)
	require.NoError(t, err)
	_, err = svc.WatchNotifications(ctx, ben)
	require.NoError(t, err)
	assert.Equal(t, 3, registry.Len())

	_, err = notifications.Notify(ctx, usecase.NotifyInput{RecipientID: ben.ID, Type: entity.NotificationSystem, Title: "Hello"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, ok := svc.LatestNotifications(ben)
		return ok && len(got) == 1
	}, testWait, testTick)

	svc.Teardown()

	assert.Zero(t, registry.Len())
	assert.Empty(t, svc.LiveKeys())
	_, ok := svc.LatestNotifications(ben)
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return st.store.Watchers() == 0 }, testWait, testTick)

	_, err = svc.WatchOrders(ctx, nil)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
}

func TestFeedService_UnwatchDropsSnapshotAfterClosing(t *testing.T) {
	st := newTestStore()
	ben := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "May", true)
	st.seedOrder(t, ben, cook, entity.OrderStatusPending)
	svc, registry := newTestFeedService(st)
	t.Cleanup(svc.Teardown)
	ctx := context.Background()

	ordersKey, err := svc.WatchOrders(ctx, ben)
	require.NoError(t, err)
	_, err = svc.WatchNotifications(ctx, ben)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := svc.LatestOrders(ben)
		return ok
	}, testWait, testTick)

	svc.Unwatch(ordersKey)

	// Writes after Unwatch must not bring the snapshot back.
	st.seedOrder(t, ben, cook, entity.OrderStatusPending)

	feeds := svc.(*feedService)
	feeds.mu.Lock()
	_, cached := feeds.latest[ordersKey]
	feeds.mu.Unlock()
	assert.False(t, cached)
	assert.False(t, registry.Live(ordersKey))
	assert.Equal(t, []string{"notifications-for-actor:" + ben.ID}, svc.LiveKeys())
	assert.Eventually(t, func() bool { return st.store.Watchers() == 1 }, testWait, testTick)
}
