package usecase

import (
	"context"
	"time"

	"kitchenline/internal/domain/entity"
)

// --- Input DTOs ---

// OrderItemInput is one line of a new order.
type OrderItemInput struct {
	Name      string `json:"name" validate:"required,max=200"`
	UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=100"`
}

// PlaceOrderInput defines the data required to place an order.
type PlaceOrderInput struct {
	CookID          string           `validate:"required,max=128"`
	Items           []OrderItemInput `validate:"required,min=1,max=50,dive"`
	DeliveryAddress string           `validate:"required,max=500"`
	// IdempotencyKey makes retried placements return the first order.
	IdempotencyKey string `validate:"omitempty,max=128"`
}

// TransitionInput requests a status change.
type TransitionInput struct {
	OrderID string             `validate:"required"`
	To      entity.OrderStatus `validate:"required"`
	// From, when set, is the status the caller believes the order is in.
	From entity.OrderStatus
}

// ListOrdersInput filters the actor's orders.
type ListOrdersInput struct {
	Statuses []entity.OrderStatus
	Limit    int `validate:"gte=0,lte=500"`
}

// --- Output DTOs ---

// TransitionResult reports the order after a transition request.
type TransitionResult struct {
	Order *entity.Order
	// Changed is false when the order already was in the requested status.
	Changed bool
}

// OrderView is an order together with the names of its parties.
type OrderView struct {
	Order        *entity.Order
	CustomerName string
	CookName     string
	// NextStatuses lists what the viewing actor may move the order to.
	NextStatuses []entity.OrderStatus
}

// OrderUsecase defines the order lifecycle operations.
type OrderUsecase interface {
	// PlaceOrder creates a pending order for a customer and notifies the cook.
	PlaceOrder(ctx context.Context, actor *entity.Actor, input PlaceOrderInput) (*entity.Order, error)

	// Transition moves an order along the lifecycle graph. Repeating a
	// transition that already happened succeeds without side effects.
	Transition(ctx context.Context, actor *entity.Actor, input TransitionInput) (*TransitionResult, error)

	// SetEstimatedDelivery records the cook's delivery estimate.
	SetEstimatedDelivery(ctx context.Context, actor *entity.Actor, orderID string, eta time.Time) (*entity.Order, error)

	// GetOrder returns one order the actor may see.
	GetOrder(ctx context.Context, actor *entity.Actor, orderID string) (*OrderView, error)

	// ListOrders returns the actor's orders, newest first. Admins see every order.
	ListOrders(ctx context.Context, actor *entity.Actor, input ListOrdersInput) ([]*entity.Order, error)
}
