package impl

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/feed"
	"kitchenline/internal/usecase"

	"go.uber.org/fx"
)

const dashboardPrefix = "dashboard"

// dashboardService keeps one admin dashboard view alive per session.
type dashboardService struct {
	registry  *feed.Registry
	orderRepo repository.OrderRepository
	actorRepo repository.ActorRepository
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	view *feed.View[*usecase.Dashboard]
}

// DashboardServiceParams holds dependencies for DashboardService, injected by Fx.
type DashboardServiceParams struct {
	fx.In

	Registry  *feed.Registry
	OrderRepo repository.OrderRepository
	ActorRepo repository.ActorRepository
	Logger    *slog.Logger
}

// NewDashboardService is the constructor for dashboardService.
func NewDashboardService(params DashboardServiceParams) usecase.DashboardUsecase {
	return &dashboardService{
		registry:  params.Registry,
		orderRepo: params.OrderRepo,
		actorRepo: params.ActorRepo,
		logger:    params.Logger,
		now:       time.Now,
	}
}

// dashboardSlots is filled while the view is already live, so compute reads it atomically.
type dashboardSlots struct {
	orders    atomic.Pointer[feed.Slot[*entity.Order]]
	customers atomic.Pointer[feed.Slot[*entity.Actor]]
	cooks     atomic.Pointer[feed.Slot[*entity.Actor]]
}

func (s *dashboardService) Open(ctx context.Context, admin *entity.Actor) error {
	if err := requireCapability(admin, entity.CapViewDashboard); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view != nil {
		return nil
	}

	slots := &dashboardSlots{}
	view := feed.NewView(s.registry, purposeKey(dashboardPrefix, admin.ID), func() *usecase.Dashboard {
		return computeDashboard(slots, s.now())
	}, nil)

	orders, err := feed.AddSlot(ctx, view, "orders", func(ctx context.Context, onSnapshot func([]*entity.Order), onError func(error)) (repository.Unsubscribe, error) {
		return s.orderRepo.WatchOrders(ctx, repository.OrderQuery{}, onSnapshot, onError)
	})
	if err != nil {
		view.Close()

		return storeError(err, "failed to open dashboard orders")
	}
	slots.orders.Store(orders)

	customers, err := feed.AddSlot(ctx, view, "customers", s.actorSource(entity.RoleCustomer))
	if err != nil {
		view.Close()

		return storeError(err, "failed to open dashboard customers")
	}
	slots.customers.Store(customers)

	cooks, err := feed.AddSlot(ctx, view, "cooks", s.actorSource(entity.RoleCook))
	if err != nil {
		view.Close()

		return storeError(err, "failed to open dashboard cooks")
	}
	slots.cooks.Store(cooks)
	// Snapshots that arrived before every slot was stored were computed partially.
	view.Refresh()

	s.view = view
	s.logger.Info("Dashboard opened", slog.String("admin_id", admin.ID))

	return nil
}

func (s *dashboardService) actorSource(role entity.Role) repository.Source[*entity.Actor] {
	return func(ctx context.Context, onSnapshot func([]*entity.Actor), onError func(error)) (repository.Unsubscribe, error) {
		return s.actorRepo.WatchActors(ctx, repository.ActorQuery{Role: role}, onSnapshot, onError)
	}
}

func (s *dashboardService) Snapshot(ctx context.Context, admin *entity.Actor) (*usecase.Dashboard, error) {
	if err := s.Open(ctx, admin); err != nil {
		return nil, err
	}

	s.mu.Lock()
	view := s.view
	s.mu.Unlock()

	if view == nil {
		return emptyDashboard(s.now()), nil
	}
	result, ok := view.Result()
	if !ok {
		return emptyDashboard(s.now()), nil
	}

	return result, nil
}

func (s *dashboardService) Close() {
	s.mu.Lock()
	view := s.view
	s.view = nil
	s.mu.Unlock()

	if view != nil {
		view.Close()
		s.logger.Debug("Dashboard closed")
	}
}

func emptyDashboard(now time.Time) *usecase.Dashboard {
	return &usecase.Dashboard{
		OrdersByStatus: make(map[entity.OrderStatus]int),
		ComputedAt:     now,
	}
}

// computeDashboard combines whatever the slots hold right now.
func computeDashboard(slots *dashboardSlots, now time.Time) *usecase.Dashboard {
	d := emptyDashboard(now)

	orders := latestOf(slots.orders.Load())
	customers := latestOf(slots.customers.Load())
	cooks := latestOf(slots.cooks.Load())
	d.OrdersFresh = orders.fresh
	d.CustomersFresh = customers.fresh
	d.CooksFresh = cooks.fresh

	d.Customers = len(customers.records)
	d.Cooks = len(cooks.records)

	names := make(map[string]string, len(cooks.records))
	known := make(map[string]struct{}, len(customers.records)+len(cooks.records))
	for _, c := range customers.records {
		known[c.ID] = struct{}{}
	}
	for _, c := range cooks.records {
		known[c.ID] = struct{}{}
		names[c.ID] = entity.PartyName(c)
		if !c.Verified {
			d.PendingVerifications++
		}
	}

	totals := make(map[string]*usecase.CookTotal)
	for _, o := range orders.records {
		d.TotalOrders++
		d.OrdersByStatus[o.Status]++

		total, ok := totals[o.CookID]
		if !ok {
			name, found := names[o.CookID]
			if !found {
				name = entity.UnknownPartyName
			}
			total = &usecase.CookTotal{CookID: o.CookID, CookName: name}
			totals[o.CookID] = total
		}
		total.Orders++
		if o.Status == entity.OrderStatusDelivered {
			total.Delivered++
			total.Revenue += o.Total
			d.DeliveredRevenue += o.Total
		}

		// Absence only means something once both actor feeds have delivered.
		if customers.fresh && cooks.fresh {
			_, hasCustomer := known[o.CustomerID]
			_, hasCook := known[o.CookID]
			if !hasCustomer || !hasCook {
				d.UnknownPartyOrders++
			}
		}
	}

	d.CookTotals = make([]usecase.CookTotal, 0, len(totals))
	for _, total := range totals {
		d.CookTotals = append(d.CookTotals, *total)
	}
	slices.SortFunc(d.CookTotals, func(a, b usecase.CookTotal) int {
		return cmp.Or(cmp.Compare(b.Revenue, a.Revenue), cmp.Compare(a.CookID, b.CookID))
	})

	return d
}

type slotState[T any] struct {
	records []T
	fresh   bool
}

func latestOf[T any](slot *feed.Slot[T]) slotState[T] {
	if slot == nil {
		return slotState[T]{}
	}
	records, fresh := slot.Latest()

	return slotState[T]{records: records, fresh: fresh}
}
