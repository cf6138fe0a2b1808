package impl

import (
	"context"
	"testing"
	"time"

	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/infra/cache"
	"kitchenline/internal/usecase"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestOrderService(st *testStore, publisher service.EventPublisher, metrics service.Metrics) usecase.OrderUsecase {
	return NewOrderService(OrderServiceParams{
		TxManager:   st.tx,
		OrderRepo:   st.orders,
		ActorRepo:   st.actors,
		Idempotency: cache.NewMemoryIdempotencyStore(time.Hour),
		Publisher:   publisher,
		Metrics:     metrics,
		Config:      newTestConfig(),
		Logger:      newDiscardLogger(),
	})
}

func TestOrderService_Transition_AcceptNotifiesCustomerOnce(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	order := st.seedOrder(t, customer, cook, entity.OrderStatusPending)

	publisher := &mockPublisher{}
	publisher.On("PublishNotificationEvent", mock.Anything, mock.MatchedBy(func(e *service.NotificationEvent) bool {
		return e.RecipientID == customer.ID && e.OrderID == order.ID && e.Type == string(entity.NotificationOrderStatus)
	})).Return(nil).Once()
	metrics := newCountingMetrics()
	svc := newTestOrderService(st, publisher, metrics)

	before := order.UpdatedAt
	result, err := svc.Transition(context.Background(), cook, usecase.TransitionInput{
		OrderID: order.ID,
		From:    entity.OrderStatusPending,
		To:      entity.OrderStatusAccepted,
	})

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, entity.OrderStatusAccepted, result.Order.Status)
	assert.False(t, result.Order.UpdatedAt.Before(before))

	stored, err := st.orders.FindOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusAccepted, stored.Status)

	notifications := st.notificationsFor(t, customer.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, entity.NotificationOrderStatus, notifications[0].Type)
	assert.Equal(t, "Order accepted", notifications[0].Title)
	assert.Contains(t, notifications[0].Message, "Auntie May")
	assert.False(t, notifications[0].IsRead)
	assert.Empty(t, st.notificationsFor(t, cook.ID))

	assert.Equal(t, []string{"pending->accepted"}, metrics.transitions)
	publisher.AssertExpectations(t)
}

func TestOrderService_Transition_RepeatIsNoop(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	order := st.seedOrder(t, customer, cook, entity.OrderStatusPending)
	svc := newTestOrderService(st, nil, nil)

	input := usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusAccepted}
	first, err := svc.Transition(context.Background(), cook, input)
	require.NoError(t, err)
	require.True(t, first.Changed)

	second, err := svc.Transition(context.Background(), cook, input)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, entity.OrderStatusAccepted, second.Order.Status)
	assert.Equal(t, first.Order.UpdatedAt, second.Order.UpdatedAt)

	assert.Len(t, st.notificationsFor(t, customer.ID), 1)
}

func TestOrderService_Transition_CustomerCannotCancelCooking(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	order := st.seedOrder(t, customer, cook, entity.OrderStatusCooking)
	svc := newTestOrderService(st, nil, nil)

	_, err := svc.Transition(context.Background(), customer, usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusCancelled})

	require.Error(t, err)
	require.True(t, domainerrors.IsInvalidTransition(err))
	var invalid *domainerrors.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, entity.OrderStatusCooking, invalid.Current)
	assert.Equal(t, entity.OrderStatusCancelled, invalid.Attempted)

	stored, err := st.orders.FindOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCooking, stored.Status)
	assert.Empty(t, st.notificationsFor(t, customer.ID))
	assert.Empty(t, st.notificationsFor(t, cook.ID))
}

func TestOrderService_Transition_Rejections(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	otherCook := st.seedActor(t, entity.RoleCook, "Chef Lim", true)
	admin := st.seedActor(t, entity.RoleAdmin, "Ops", true)
	order := st.seedOrder(t, customer, cook, entity.OrderStatusPending)
	delivered := st.seedOrder(t, customer, cook, entity.OrderStatusDelivered)
	svc := newTestOrderService(st, nil, nil)

	tests := []struct {
		name    string
		actor   *entity.Actor
		input   usecase.TransitionInput
		wantErr error
		invalid bool
	}{
		{
			name:    "signed out",
			actor:   nil,
			input:   usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusAccepted},
			wantErr: domainerrors.ErrUnauthenticated,
		},
		{
			name:    "not a party",
			actor:   otherCook,
			input:   usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusAccepted},
			wantErr: domainerrors.ErrUnauthorized,
		},
		{
			name:    "admin is not a party",
			actor:   admin,
			input:   usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusAccepted},
			wantErr: domainerrors.ErrUnauthorized,
		},
		{
			name:    "customer cannot accept",
			actor:   customer,
			input:   usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusAccepted},
			invalid: true,
		},
		{
			name:    "skipping a step",
			actor:   cook,
			input:   usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusReady},
			invalid: true,
		},
		{
			name:    "stale expected status",
			actor:   cook,
			input:   usecase.TransitionInput{OrderID: order.ID, From: entity.OrderStatusCooking, To: entity.OrderStatusReady},
			invalid: true,
		},
		{
			name:    "terminal order",
			actor:   cook,
			input:   usecase.TransitionInput{OrderID: delivered.ID, To: entity.OrderStatusCancelled},
			invalid: true,
		},
		{
			name:    "unknown status",
			actor:   cook,
			input:   usecase.TransitionInput{OrderID: order.ID, To: "burnt"},
			wantErr: domainerrors.ErrValidationFailed,
		},
		{
			name:    "missing order",
			actor:   cook,
			input:   usecase.TransitionInput{OrderID: "missing", To: entity.OrderStatusAccepted},
			wantErr: domainerrors.ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transition(context.Background(), tt.actor, tt.input)

			require.Error(t, err)
			if tt.invalid {
				assert.True(t, domainerrors.IsInvalidTransition(err), "got %v", err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	stored, err := st.orders.FindOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusPending, stored.Status)
	assert.Empty(t, st.notificationsFor(t, customer.ID))
}

func TestOrderService_Transition_CancelExplainsToCounterparty(t *testing.T) {
	t.Run("customer cancels pending order", func(t *testing.T) {
		st := newTestStore()
		customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
		cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
		order := st.seedOrder(t, customer, cook, entity.OrderStatusPending)
		svc := newTestOrderService(st, nil, nil)

		result, err := svc.Transition(context.Background(), customer, usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusCancelled})
		require.NoError(t, err)
		assert.Equal(t, entity.OrderStatusCancelled, result.Order.Status)

		customerNotes := st.notificationsFor(t, customer.ID)
		require.Len(t, customerNotes, 1)
		assert.Equal(t, "Order cancelled", customerNotes[0].Title)

		cookNotes := st.notificationsFor(t, cook.ID)
		require.Len(t, cookNotes, 1)
		assert.Equal(t, entity.NotificationOrderStatus, cookNotes[0].Type)
		assert.Contains(t, cookNotes[0].Message, "Ben cancelled order")
	})

	t.Run("cook cancels ready order", func(t *testing.T) {
		st := newTestStore()
		customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
		cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
		order := st.seedOrder(t, customer, cook, entity.OrderStatusReady)
		svc := newTestOrderService(st, nil, nil)

		_, err := svc.Transition(context.Background(), cook, usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusCancelled})
		require.NoError(t, err)

		customerNotes := st.notificationsFor(t, customer.ID)
		require.Len(t, customerNotes, 2)
		for _, n := range customerNotes {
			assert.Equal(t, entity.NotificationOrderStatus, n.Type)
			assert.Equal(t, order.ID, n.OrderID)
		}
		assert.Empty(t, st.notificationsFor(t, cook.ID))
	})
}

func TestOrderService_Transition_DeliveredStampsDeliveryTime(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	order := st.seedOrder(t, customer, cook, entity.OrderStatusOutForDelivery)
	svc := newTestOrderService(st, nil, nil)

	result, err := svc.Transition(context.Background(), cook, usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, result.Order.ActualDeliveryTime)

	stored, err := st.orders.FindOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ActualDeliveryTime)
	assert.Equal(t, entity.OrderStatusDelivered, stored.Status)
}

func TestOrderService_Transition_DanglingCookIsUnknownParty(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	order := entity.NewOrder(customer.ID, "deleted-cook", nil, 0, "1 Harbour St", time.Now())
	require.NoError(t, st.orders.CreateOrder(context.Background(), order))
	svc := newTestOrderService(st, nil, nil)

	_, err := svc.Transition(context.Background(), customer, usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusCancelled})
	require.NoError(t, err)

	view, err := svc.GetOrder(context.Background(), customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.UnknownPartyName, view.CookName)
	assert.Equal(t, "Ben", view.CustomerName)
	assert.Empty(t, st.notificationsFor(t, cook.ID))
}

func TestOrderService_PlaceOrder(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	metrics := newCountingMetrics()
	svc := newTestOrderService(st, nil, metrics)

	input := usecase.PlaceOrderInput{
		CookID: cook.ID,
		Items: []usecase.OrderItemInput{
			{Name: "Laksa", UnitPrice: 1200, Quantity: 2},
			{Name: "Kaya toast", UnitPrice: 350, Quantity: 1},
		},
		DeliveryAddress: "1 Harbour St",
	}

	order, err := svc.PlaceOrder(context.Background(), customer, input)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, entity.OrderStatusPending, order.Status)
	assert.Equal(t, entity.PaymentPending, order.PaymentStatus)
	assert.Equal(t, int64(2750), order.Subtotal)
	assert.Equal(t, int64(300), order.DeliveryFee)
	assert.Equal(t, int64(3050), order.Total)

	cookNotes := st.notificationsFor(t, cook.ID)
	require.Len(t, cookNotes, 1)
	assert.Equal(t, entity.NotificationNewOrder, cookNotes[0].Type)
	assert.Equal(t, order.ID, cookNotes[0].OrderID)
	assert.Contains(t, cookNotes[0].Message, "3 items")
	assert.Equal(t, 1, metrics.notifications[string(entity.NotificationNewOrder)])
}

func TestOrderService_PlaceOrder_UsesCookFee(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	fee := int64(150)
	cook.Profile.DeliveryFee = &fee
	require.NoError(t, st.actors.UpdateActor(context.Background(), cook))
	svc := newTestOrderService(st, nil, nil)

	order, err := svc.PlaceOrder(context.Background(), customer, usecase.PlaceOrderInput{
		CookID:          cook.ID,
		Items:           []usecase.OrderItemInput{{Name: "Laksa", UnitPrice: 1200, Quantity: 1}},
		DeliveryAddress: "1 Harbour St",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), order.DeliveryFee)
	assert.Equal(t, int64(1350), order.Total)
}

func TestOrderService_PlaceOrder_IdempotencyKey(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	svc := newTestOrderService(st, nil, nil)

	input := usecase.PlaceOrderInput{
		CookID:          cook.ID,
		Items:           []usecase.OrderItemInput{{Name: "Laksa", UnitPrice: 1200, Quantity: 1}},
		DeliveryAddress: "1 Harbour St",
		IdempotencyKey:  "checkout-1",
	}

	first, err := svc.PlaceOrder(context.Background(), customer, input)
	require.NoError(t, err)
	second, err := svc.PlaceOrder(context.Background(), customer, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	orders, err := svc.ListOrders(context.Background(), customer, usecase.ListOrdersInput{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Len(t, st.notificationsFor(t, cook.ID), 1)

	input.IdempotencyKey = "checkout-2"
	third, err := svc.PlaceOrder(context.Background(), customer, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

// unrecordedIdempotency never manages to record a completed placement, so every
// retry finds the key reserved with no order attached.
type unrecordedIdempotency struct {
	service.IdempotencyStore
}

func (unrecordedIdempotency) Complete(context.Context, string, string) error {
	return errors.New("redis: connection reset by peer")
}

// unreachableIdempotency fails every call.
type unreachableIdempotency struct{}

func (unreachableIdempotency) Reserve(context.Context, string) (string, bool, error) {
	return "", false, errors.New("redis: i/o timeout")
}

func (unreachableIdempotency) Complete(context.Context, string, string) error {
	return errors.New("redis: i/o timeout")
}

func (unreachableIdempotency) Release(context.Context, string) error {
	return errors.New("redis: i/o timeout")
}

func TestOrderService_PlaceOrder_IdempotencyKeySurvivesCacheFailures(t *testing.T) {
	tests := []struct {
		name        string
		idempotency service.IdempotencyStore
	}{
		{name: "complete fails", idempotency: unrecordedIdempotency{IdempotencyStore: cache.NewMemoryIdempotencyStore(time.Hour)}},
		{name: "store unreachable", idempotency: unreachableIdempotency{}},
		{name: "no store", idempotency: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore()
			customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
			cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
			svc := NewOrderService(OrderServiceParams{
				TxManager:   st.tx,
				OrderRepo:   st.orders,
				ActorRepo:   st.actors,
				Idempotency: tt.idempotency,
				Config:      newTestConfig(),
				Logger:      newDiscardLogger(),
			})

			input := usecase.PlaceOrderInput{
				CookID:          cook.ID,
				Items:           []usecase.OrderItemInput{{Name: "Laksa", UnitPrice: 1200, Quantity: 1}},
				DeliveryAddress: "1 Harbour St",
				IdempotencyKey:  "checkout-1",
			}

			first, err := svc.PlaceOrder(context.Background(), customer, input)
			require.NoError(t, err)
			second, err := svc.PlaceOrder(context.Background(), customer, input)
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, first.Total, second.Total)

			orders, err := svc.ListOrders(context.Background(), customer, usecase.ListOrdersInput{})
			require.NoError(t, err)
			assert.Len(t, orders, 1)
			assert.Len(t, st.notificationsFor(t, cook.ID), 1)
		})
	}
}

func TestOrderService_PlaceOrder_IdempotencyKeyIsPerCustomer(t *testing.T) {
	st := newTestStore()
	ben := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	ada := st.seedActor(t, entity.RoleCustomer, "Ada", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	svc := newTestOrderService(st, nil, nil)

	input := usecase.PlaceOrderInput{
		CookID:          cook.ID,
		Items:           []usecase.OrderItemInput{{Name: "Laksa", UnitPrice: 1200, Quantity: 1}},
		DeliveryAddress: "1 Harbour St",
		IdempotencyKey:  "checkout-1",
	}

	bens, err := svc.PlaceOrder(context.Background(), ben, input)
	require.NoError(t, err)
	adas, err := svc.PlaceOrder(context.Background(), ada, input)
	require.NoError(t, err)

	assert.NotEqual(t, bens.ID, adas.ID)
	assert.Equal(t, ada.ID, adas.CustomerID)
	assert.Len(t, st.notificationsFor(t, cook.ID), 2)
}

func TestOrderService_PlaceOrder_Rejections(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	unverified := st.seedActor(t, entity.RoleCook, "New Cook", false)
	svc := newTestOrderService(st, nil, nil)

	items := []usecase.OrderItemInput{{Name: "Laksa", UnitPrice: 1200, Quantity: 1}}
	tests := []struct {
		name    string
		actor   *entity.Actor
		input   usecase.PlaceOrderInput
		wantErr error
	}{
		{"cook cannot order", cook, usecase.PlaceOrderInput{CookID: cook.ID, Items: items, DeliveryAddress: "x"}, domainerrors.ErrUnauthorized},
		{"no items", customer, usecase.PlaceOrderInput{CookID: cook.ID, DeliveryAddress: "x"}, domainerrors.ErrValidationFailed},
		{"zero quantity", customer, usecase.PlaceOrderInput{CookID: cook.ID, Items: []usecase.OrderItemInput{{Name: "Laksa", UnitPrice: 1200}}, DeliveryAddress: "x"}, domainerrors.ErrValidationFailed},
		{"unknown cook", customer, usecase.PlaceOrderInput{CookID: "missing", Items: items, DeliveryAddress: "x"}, domainerrors.ErrActorNotFound},
		{"cook is a customer", customer, usecase.PlaceOrderInput{CookID: customer.ID, Items: items, DeliveryAddress: "x"}, domainerrors.ErrValidationFailed},
		{"unverified cook", customer, usecase.PlaceOrderInput{CookID: unverified.ID, Items: items, DeliveryAddress: "x"}, domainerrors.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(context.Background(), tt.actor, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	orders, err := st.orders.ListOrders(context.Background(), repository.OrderQuery{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderService_SetEstimatedDelivery(t *testing.T) {
	st := newTestStore()
	customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	otherCook := st.seedActor(t, entity.RoleCook, "Chef Lim", true)
	order := st.seedOrder(t, customer, cook, entity.OrderStatusCooking)
	closed := st.seedOrder(t, customer, cook, entity.OrderStatusDelivered)
	svc := newTestOrderService(st, nil, nil)
	eta := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	updated, err := svc.SetEstimatedDelivery(context.Background(), cook, order.ID, eta)
	require.NoError(t, err)
	require.NotNil(t, updated.EstimatedDeliveryTime)
	assert.True(t, eta.Equal(*updated.EstimatedDeliveryTime))

	stored, err := st.orders.FindOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EstimatedDeliveryTime)
	assert.True(t, eta.Equal(*stored.EstimatedDeliveryTime))

	_, err = svc.SetEstimatedDelivery(context.Background(), otherCook, order.ID, eta)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, err = svc.SetEstimatedDelivery(context.Background(), customer, order.ID, eta)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	_, err = svc.SetEstimatedDelivery(context.Background(), cook, closed.ID, eta)
	assert.ErrorIs(t, err, domainerrors.ErrOrderClosed)

	_, err = svc.SetEstimatedDelivery(context.Background(), cook, order.ID, time.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestOrderService_GetAndListScoping(t *testing.T) {
	st := newTestStore()
	ben := st.seedActor(t, entity.RoleCustomer, "Ben", true)
	ana := st.seedActor(t, entity.RoleCustomer, "Ana", true)
	cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
	admin := st.seedActor(t, entity.RoleAdmin, "Ops", true)
	bens := st.seedOrder(t, ben, cook, entity.OrderStatusPending)
	st.seedOrder(t, ana, cook, entity.OrderStatusCooking)
	svc := newTestOrderService(st, nil, nil)

	_, err := svc.GetOrder(context.Background(), ana, bens.ID)
	assert.ErrorIs(t, err, domainerrors.ErrOrderNotFound)

	view, err := svc.GetOrder(context.Background(), cook, bens.ID)
	require.NoError(t, err)
	assert.Equal(t, []entity.OrderStatus{entity.OrderStatusAccepted, entity.OrderStatusCancelled}, view.NextStatuses)

	view, err = svc.GetOrder(context.Background(), admin, bens.ID)
	require.NoError(t, err)
	assert.Empty(t, view.NextStatuses)

	own, err := svc.ListOrders(context.Background(), ben, usecase.ListOrdersInput{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, bens.ID, own[0].ID)

	cooks, err := svc.ListOrders(context.Background(), cook, usecase.ListOrdersInput{Statuses: []entity.OrderStatus{entity.OrderStatusCooking}})
	require.NoError(t, err)
	assert.Len(t, cooks, 1)

	all, err := svc.ListOrders(context.Background(), admin, usecase.ListOrdersInput{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// racingTx makes every status write lose to a concurrent writer, which moves
// the order to winner once the losing transaction has rolled back.
type racingTx struct {
	inner  repository.TransactionManager
	orders repository.OrderRepository
	winner entity.OrderStatus
}

func (tx *racingTx) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	err := tx.inner.Execute(ctx, func(f repository.RepositoryFactory) error {
		return fn(conflictingFactory{RepositoryFactory: f})
	})
	if !errors.Is(err, repository.ErrStatusConflict) {
		return err
	}

	orders, listErr := tx.orders.ListOrders(ctx, repository.OrderQuery{})
	if listErr != nil {
		return listErr
	}
	for _, order := range orders {
		from := order.Status
		order.ApplyStatus(tx.winner, time.Now())
		if updateErr := tx.orders.UpdateOrderStatus(ctx, order, from); updateErr != nil {
			return updateErr
		}
	}

	return err
}

type conflictingFactory struct {
	repository.RepositoryFactory
}

func (f conflictingFactory) NewOrderRepository() repository.OrderRepository {
	return conflictingOrders{OrderRepository: f.RepositoryFactory.NewOrderRepository()}
}

type conflictingOrders struct {
	repository.OrderRepository
}

func (conflictingOrders) UpdateOrderStatus(context.Context, *entity.Order, entity.OrderStatus) error {
	return errors.WithStack(repository.ErrStatusConflict)
}

func TestOrderService_Transition_LostRace(t *testing.T) {
	tests := []struct {
		name        string
		winner      entity.OrderStatus
		wantInvalid bool
	}{
		{name: "racer reached the same status", winner: entity.OrderStatusAccepted},
		{name: "racer cancelled first", winner: entity.OrderStatusCancelled, wantInvalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore()
			customer := st.seedActor(t, entity.RoleCustomer, "Ben", true)
			cook := st.seedActor(t, entity.RoleCook, "Auntie May", true)
			order := st.seedOrder(t, customer, cook, entity.OrderStatusPending)
			st.tx = &racingTx{inner: st.tx, orders: st.orders, winner: tt.winner}
			svc := newTestOrderService(st, nil, nil)

			result, err := svc.Transition(context.Background(), cook, usecase.TransitionInput{OrderID: order.ID, To: entity.OrderStatusAccepted})

			if tt.wantInvalid {
				var transitionErr *domainerrors.InvalidTransitionError
				require.ErrorAs(t, err, &transitionErr)
				assert.Equal(t, entity.OrderStatusCancelled, transitionErr.Current)

				return
			}
			require.NoError(t, err)
			assert.False(t, result.Changed)
			assert.Equal(t, entity.OrderStatusAccepted, result.Order.Status)
			assert.Empty(t, st.notificationsFor(t, customer.ID))
		})
	}
}
