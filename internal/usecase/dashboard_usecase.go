package usecase

import (
	"context"
	"time"

	"kitchenline/internal/domain/entity"
)

// CookTotal aggregates the orders of one cook.
type CookTotal struct {
	CookID    string
	CookName  string
	Orders    int
	Delivered int
	Revenue   int64
}

// Dashboard is the admin overview derived from the orders, customers and cooks feeds.
type Dashboard struct {
	TotalOrders          int
	OrdersByStatus       map[entity.OrderStatus]int
	DeliveredRevenue     int64
	CookTotals           []CookTotal
	Customers            int
	Cooks                int
	PendingVerifications int
	// UnknownPartyOrders counts orders whose customer or cook record is missing.
	UnknownPartyOrders int
	// Each flag is true once the corresponding feed delivered a snapshot.
	OrdersFresh    bool
	CustomersFresh bool
	CooksFresh     bool
	ComputedAt     time.Time
}

// DashboardUsecase maintains the admin dashboard.
type DashboardUsecase interface {
	// Open starts the dashboard feeds. Opening an open dashboard is a no-op.
	Open(ctx context.Context, admin *entity.Actor) error

	// Snapshot returns the latest dashboard, opening it first when needed.
	Snapshot(ctx context.Context, admin *entity.Actor) (*Dashboard, error)

	// Close stops the dashboard feeds.
	Close()
}
