package repository

import (
	"context"
	"errors"
	"time"

	"kitchenline/internal/domain/entity"
)

// Domain-specific errors for order persistence.
var (
	// ErrOrderNotFound is returned when an order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusConflict is returned when a conditional status write finds a different current status.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrOrderAlreadyExists is returned when a preset order ID is already taken.
	ErrOrderAlreadyExists = errors.New("order already exists")
)

// OrderQuery filters order reads and feeds. Zero values match everything.
// Results are ordered by creation time, newest first.
type OrderQuery struct {
	OrderID    string
	CustomerID string
	CookID     string
	Statuses   []entity.OrderStatus
	Limit      int
}

// OrderRepository defines the interface for order-related store operations.
type OrderRepository interface {
	// CreateOrder persists a new order. A preset order.ID is kept, otherwise one
	// is assigned. A preset ID that is already stored yields ErrOrderAlreadyExists.
	CreateOrder(ctx context.Context, order *entity.Order) error

	// FindOrderByID retrieves an order by ID.
	FindOrderByID(ctx context.Context, id string) (*entity.Order, error)

	// UpdateOrderStatus writes status, updatedAt and actualDeliveryTime of order,
	// provided the stored status still equals expected. Otherwise it returns ErrStatusConflict.
	UpdateOrderStatus(ctx context.Context, order *entity.Order, expected entity.OrderStatus) error

	// UpdateEstimatedDelivery sets the estimated delivery time of an order.
	UpdateEstimatedDelivery(ctx context.Context, id string, eta, updatedAt time.Time) error

	// ListOrders runs a one-shot query.
	ListOrders(ctx context.Context, query OrderQuery) ([]*entity.Order, error)

	// WatchOrders opens a live query.
	WatchOrders(ctx context.Context, query OrderQuery, onSnapshot func([]*entity.Order), onError func(error)) (Unsubscribe, error)
}
