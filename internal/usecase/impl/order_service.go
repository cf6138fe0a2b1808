package impl

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"kitchenline/config"
	deliverycontext "kitchenline/internal/delivery/context"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	idempotencyKeyPrefix = "place-order:"
	defaultOrderLimit    = 100
)

// orderService implements the OrderUsecase interface.
type orderService struct {
	txManager          repository.TransactionManager
	orderRepo          repository.OrderRepository
	actorRepo          repository.ActorRepository
	idempotency        service.IdempotencyStore
	fanout             *fanout
	metrics            service.Metrics
	defaultDeliveryFee int64
	logger             *slog.Logger
	now                func() time.Time
}

// OrderServiceParams holds dependencies for OrderService, injected by Fx.
type OrderServiceParams struct {
	fx.In

	TxManager   repository.TransactionManager
	OrderRepo   repository.OrderRepository
	ActorRepo   repository.ActorRepository
	Idempotency service.IdempotencyStore
	Publisher   service.EventPublisher `optional:"true"`
	Metrics     service.Metrics        `optional:"true"`
	Config      *config.Config
	Logger      *slog.Logger
}

// NewOrderService is the constructor for orderService.
func NewOrderService(params OrderServiceParams) usecase.OrderUsecase {
	var defaultFee int64
	if params.Config != nil && params.Config.App != nil {
		defaultFee = params.Config.App.DefaultDeliveryFee
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = service.NopMetrics{}
	}

	return &orderService{
		txManager:          params.TxManager,
		orderRepo:          params.OrderRepo,
		actorRepo:          params.ActorRepo,
		idempotency:        params.Idempotency,
		fanout:             newFanout(params.Publisher, metrics, params.Logger),
		metrics:            metrics,
		defaultDeliveryFee: defaultFee,
		logger:             params.Logger,
		now:                time.Now,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *orderService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// PlaceOrder creates the order and the cook's new-order notification in one transaction.
//
// A keyed placement gets an order ID derived from the customer and the key, so
// the store itself rejects a second order for the same key. The idempotency
// store only short-cuts replays of completed placements.
func (srv *orderService) PlaceOrder(ctx context.Context, actor *entity.Actor, input usecase.PlaceOrderInput) (*entity.Order, error) {
	if err := requireCapability(actor, entity.CapPlaceOrder); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if input.IdempotencyKey == "" {
		return srv.placeOrder(ctx, actor, input, "")
	}

	key := idempotencyKeyPrefix + actor.ID + ":" + input.IdempotencyKey
	orderID := keyedOrderID(actor.ID, input.IdempotencyKey)
	reserved := srv.reserve(ctx, key)
	if !reserved.owned && reserved.existing != "" {
		srv.log(ctx).Info("Returning previously placed order", slog.String("order_id", reserved.existing))

		return srv.findOrder(ctx, reserved.existing)
	}

	order, err := srv.placeOrder(ctx, actor, input, orderID)
	if err != nil {
		if reserved.owned {
			if releaseErr := srv.idempotency.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
				srv.log(ctx).Warn("Failed to release idempotency key", slog.Any("error", releaseErr))
			}
		}

		return nil, err
	}
	if srv.idempotency != nil {
		if err := srv.idempotency.Complete(context.WithoutCancel(ctx), key, order.ID); err != nil {
			srv.log(ctx).Warn("Failed to record idempotency key", slog.String("order_id", order.ID), slog.Any("error", err))
		}
	}

	return order, nil
}

type reservation struct {
	owned    bool
	existing string
}

// reserve claims key in the idempotency store. Failures of the store are
// logged and placement falls back to the order store alone.
func (srv *orderService) reserve(ctx context.Context, key string) reservation {
	if srv.idempotency == nil {
		return reservation{}
	}
	existing, owned, err := srv.idempotency.Reserve(ctx, key)
	if err != nil {
		srv.log(ctx).Warn("Failed to reserve idempotency key", slog.Any("error", err))

		return reservation{}
	}

	return reservation{owned: owned, existing: existing}
}

// keyedOrderID derives a stable order ID from a customer and an idempotency key.
func keyedOrderID(customerID, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(idempotencyKeyPrefix+customerID+":"+key)).String()
}

// placeOrder writes a new order. A non-empty orderID that is already stored
// makes it return the stored order without writing anything.
func (srv *orderService) placeOrder(ctx context.Context, customer *entity.Actor, input usecase.PlaceOrderInput, orderID string) (*entity.Order, error) {
	items := make([]entity.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, entity.OrderItem{Name: item.Name, UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}

	var (
		order        *entity.Order
		notification *entity.Notification
		replayed     bool
	)
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		actorRepo := repoFactory.NewActorRepository()
		orderRepo := repoFactory.NewOrderRepository()
		notificationRepo := repoFactory.NewNotificationRepository()

		replayed = false
		if orderID != "" {
			stored, err := orderRepo.FindOrderByID(ctx, orderID)
			if err == nil {
				order, replayed = stored, true

				return nil
			}
			if !errors.Is(err, repository.ErrOrderNotFound) {
				return errors.Wrap(err, "failed to find keyed order")
			}
		}

		cook, err := actorRepo.FindActorByID(ctx, input.CookID)
		if errors.Is(err, repository.ErrActorNotFound) {
			return errors.WithStack(domainerrors.ErrActorNotFound.WithDetails("cook " + input.CookID))
		}
		if err != nil {
			return errors.Wrap(err, "failed to find cook")
		}
		if cook.Role != entity.RoleCook {
			return errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("cookId does not belong to a cook"))
		}
		if !cook.Verified {
			return errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("cook is not verified yet"))
		}

		fee := srv.defaultDeliveryFee
		if cook.Profile.DeliveryFee != nil {
			fee = *cook.Profile.DeliveryFee
		}

		now := srv.now()
		order = entity.NewOrder(customer.ID, cook.ID, items, fee, input.DeliveryAddress, now)
		order.ID = orderID
		if err := orderRepo.CreateOrder(ctx, order); err != nil {
			return errors.Wrap(err, "failed to create order")
		}

		notification = entity.NewNotification(
			cook.ID,
			entity.NotificationNewOrder,
			"New order",
			newOrderMessage(customer, order),
			order.ID,
			now,
		)

		return srv.fanout.create(ctx, notificationRepo, notification)
	})
	if orderID != "" && errors.Is(err, repository.ErrOrderAlreadyExists) {
		// A concurrent placement with the same key committed first.
		return srv.findOrder(ctx, orderID)
	}
	if err != nil {
		srv.log(ctx).Error("Failed to place order", slog.String("cook_id", input.CookID), slog.Any("error", err))

		return nil, storeError(err, "failed to place order")
	}
	if replayed {
		srv.log(ctx).Info("Returning previously placed order", slog.String("order_id", order.ID))

		return order, nil
	}

	srv.log(ctx).Info("Order placed",
		slog.String("order_id", order.ID),
		slog.String("cook_id", order.CookID),
		slog.Int64("total", order.Total),
	)
	srv.fanout.announce(ctx, notification)

	return order, nil
}

// Transition runs every check and both writes inside one transaction, so the
// status change and its notifications commit together or not at all.
func (srv *orderService) Transition(ctx context.Context, actor *entity.Actor, input usecase.TransitionInput) (*usecase.TransitionResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.To.IsValid() {
		return nil, errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("unknown status " + string(input.To)))
	}
	if input.From != "" && !input.From.IsValid() {
		return nil, errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("unknown status " + string(input.From)))
	}

	var (
		result        usecase.TransitionResult
		from          entity.OrderStatus
		notifications []*entity.Notification
	)
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		// Backends may re-run this function; start every attempt clean.
		result = usecase.TransitionResult{}
		notifications = nil

		orderRepo := repoFactory.NewOrderRepository()
		actorRepo := repoFactory.NewActorRepository()
		notificationRepo := repoFactory.NewNotificationRepository()

		order, err := orderRepo.FindOrderByID(ctx, input.OrderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return errors.WithStack(domainerrors.ErrOrderNotFound)
		}
		if err != nil {
			return errors.Wrap(err, "failed to find order")
		}
		if !order.IsParty(actor.ID) {
			return errors.WithStack(domainerrors.ErrUnauthorized.WithDetails("not a party of this order"))
		}

		from = order.Status
		if order.Status == input.To {
			result.Order = order

			return nil
		}
		if input.From != "" && input.From != order.Status {
			return errors.WithStack(domainerrors.NewInvalidTransitionError(order.ID, order.Status, input.To))
		}
		if !order.Status.PermitsTransition(input.To, actor.Role) {
			return errors.WithStack(domainerrors.NewInvalidTransitionError(order.ID, order.Status, input.To))
		}

		// Reads come before writes: some stores reject reads after a write in a transaction.
		cookName := srv.partyName(ctx, actorRepo, order.CookID)
		actorName := entity.PartyName(actor)

		now := srv.now()
		order.ApplyStatus(input.To, now)
		err = orderRepo.UpdateOrderStatus(ctx, order, from)
		if errors.Is(err, repository.ErrStatusConflict) {
			return errors.WithStack(err)
		}
		if err != nil {
			return errors.Wrap(err, "failed to update order status")
		}

		notifications = transitionNotifications(order, actor, cookName, actorName, now)
		for _, n := range notifications {
			if err := srv.fanout.create(ctx, notificationRepo, n); err != nil {
				return err
			}
		}

		result.Order = order
		result.Changed = true

		return nil
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		return srv.settleConflict(ctx, input)
	}
	if err != nil {
		if domainerrors.IsInvalidTransition(err) {
			srv.log(ctx).Warn("Rejected order transition",
				slog.String("order_id", input.OrderID),
				slog.String("actor_id", actor.ID),
				slog.String("to", string(input.To)),
				slog.Any("error", err),
			)
		} else {
			srv.log(ctx).Error("Failed to transition order", slog.String("order_id", input.OrderID), slog.Any("error", err))
		}

		return nil, storeError(err, "failed to transition order")
	}

	if !result.Changed {
		srv.log(ctx).Info("Order already in requested status", slog.String("order_id", input.OrderID), slog.String("status", string(input.To)))

		return &result, nil
	}

	srv.log(ctx).Info("Order transitioned",
		slog.String("order_id", result.Order.ID),
		slog.String("from", string(from)),
		slog.String("to", string(result.Order.Status)),
		slog.String("actor_id", actor.ID),
	)
	srv.metrics.OrderTransitioned(string(from), string(result.Order.Status))
	srv.fanout.announce(ctx, notifications...)

	return &result, nil
}

// settleConflict resolves a status write that lost a race. A racing call that
// already reached the same target makes this one a repeat; anything else is an
// invalid transition from the status now stored.
func (srv *orderService) settleConflict(ctx context.Context, input usecase.TransitionInput) (*usecase.TransitionResult, error) {
	current, err := srv.findOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if current.Status == input.To {
		srv.log(ctx).Info("Order reached requested status concurrently", slog.String("order_id", current.ID), slog.String("status", string(input.To)))

		return &usecase.TransitionResult{Order: current}, nil
	}

	srv.log(ctx).Warn("Rejected order transition after concurrent change",
		slog.String("order_id", current.ID),
		slog.String("current", string(current.Status)),
		slog.String("to", string(input.To)),
	)

	return nil, errors.WithStack(domainerrors.NewInvalidTransitionError(current.ID, current.Status, input.To))
}

// transitionNotifications builds the order-status records a transition emits:
// one for the customer, and on cancellation one explaining it to the other party.
func transitionNotifications(order *entity.Order, actor *entity.Actor, cookName, actorName string, now time.Time) []*entity.Notification {
	status := order.Status
	notifications := []*entity.Notification{
		entity.NewNotification(order.CustomerID, entity.NotificationOrderStatus, status.Headline(), status.Describe(cookName), order.ID, now),
	}
	if status != entity.OrderStatusCancelled {
		return notifications
	}

	if counterparty := order.Counterparty(actor.ID); counterparty != "" {
		notifications = append(notifications, entity.NewNotification(
			counterparty,
			entity.NotificationOrderStatus,
			"Order cancelled",
			cancellationMessage(order, actor, actorName),
			order.ID,
			now,
		))
	}

	return notifications
}

func cancellationMessage(order *entity.Order, actor *entity.Actor, actorName string) string {
	ref := shortOrderRef(order.ID)
	if actor.Role == entity.RoleCustomer {
		return actorName + " cancelled order " + ref + " before it was accepted."
	}

	return actorName + " cancelled order " + ref + ". You will not be charged."
}

func newOrderMessage(customer *entity.Actor, order *entity.Order) string {
	return entity.PartyName(customer) + " placed order " + shortOrderRef(order.ID) + " with " + itemCount(order) + "."
}

func itemCount(order *entity.Order) string {
	var n int
	for _, item := range order.Items {
		n += item.Quantity
	}
	if n == 1 {
		return "1 item"
	}

	return strconv.Itoa(n) + " items"
}

func shortOrderRef(id string) string {
	if len(id) > 8 {
		return "#" + id[:8]
	}

	return "#" + id
}

// partyName resolves an actor's display name. A missing record is an unknown
// party, not an error.
func (srv *orderService) partyName(ctx context.Context, repo repository.ActorRepository, id string) string {
	if id == "" {
		return entity.UnknownPartyName
	}
	party, err := repo.FindActorByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrActorNotFound) {
			srv.log(ctx).Warn("Failed to read party name", slog.String("actor_id", id), slog.Any("error", err))
		}

		return entity.UnknownPartyName
	}

	return entity.PartyName(party)
}

// SetEstimatedDelivery is limited to the order's cook while the order is open.
func (srv *orderService) SetEstimatedDelivery(ctx context.Context, actor *entity.Actor, orderID string, eta time.Time) (*entity.Order, error) {
	if err := requireCapability(actor, entity.CapSetDeliveryEstimate); err != nil {
		return nil, err
	}
	if eta.IsZero() {
		return nil, errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("eta is required"))
	}

	var order *entity.Order
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		orderRepo := repoFactory.NewOrderRepository()

		found, err := orderRepo.FindOrderByID(ctx, orderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return errors.WithStack(domainerrors.ErrOrderNotFound)
		}
		if err != nil {
			return errors.Wrap(err, "failed to find order")
		}
		if found.CookID != actor.ID {
			return errors.WithStack(domainerrors.ErrUnauthorized.WithDetails("only the order's cook can set the delivery estimate"))
		}
		if found.Status.IsTerminal() {
			return errors.WithStack(domainerrors.ErrOrderClosed)
		}
		now := srv.now()
		if !eta.After(now) {
			return errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("eta must be in the future"))
		}

		if err := orderRepo.UpdateEstimatedDelivery(ctx, orderID, eta, now); err != nil {
			return errors.Wrap(err, "failed to update delivery estimate")
		}
		estimate := eta
		found.EstimatedDeliveryTime = &estimate
		found.UpdatedAt = now
		order = found

		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to set delivery estimate")
	}

	srv.log(ctx).Info("Delivery estimate set", slog.String("order_id", orderID), slog.Time("eta", eta))

	return order, nil
}

func (srv *orderService) GetOrder(ctx context.Context, actor *entity.Actor, orderID string) (*usecase.OrderView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	order, err := srv.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actor.ID) && !actor.Role.Can(entity.CapWatchAllOrders) {
		// Orders of other actors are indistinguishable from missing ones.
		return nil, errors.WithStack(domainerrors.ErrOrderNotFound)
	}

	view := &usecase.OrderView{
		Order:        order,
		CustomerName: srv.partyName(ctx, srv.actorRepo, order.CustomerID),
		CookName:     srv.partyName(ctx, srv.actorRepo, order.CookID),
	}
	if order.IsParty(actor.ID) {
		view.NextStatuses = order.Status.NextStatuses(actor.Role)
	}

	return view, nil
}

func (srv *orderService) ListOrders(ctx context.Context, actor *entity.Actor, input usecase.ListOrdersInput) ([]*entity.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	query, err := ordersQueryFor(actor)
	if err != nil {
		return nil, err
	}
	query.Statuses = input.Statuses
	query.Limit = input.Limit
	if query.Limit == 0 {
		query.Limit = defaultOrderLimit
	}

	orders, err := srv.orderRepo.ListOrders(ctx, query)
	if err != nil {
		return nil, storeError(err, "failed to list orders")
	}

	return orders, nil
}

func (srv *orderService) findOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	order, err := srv.orderRepo.FindOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, errors.WithStack(domainerrors.ErrOrderNotFound)
	}
	if err != nil {
		return nil, storeError(err, "failed to find order")
	}

	return order, nil
}

// ordersQueryFor scopes an order query to what actor may see.
func ordersQueryFor(actor *entity.Actor) (repository.OrderQuery, error) {
	switch actor.Role {
	case entity.RoleCustomer:
		return repository.OrderQuery{CustomerID: actor.ID}, nil
	case entity.RoleCook:
		return repository.OrderQuery{CookID: actor.ID}, nil
	case entity.RoleAdmin:
		return repository.OrderQuery{}, nil
	default:
		return repository.OrderQuery{}, errors.WithStack(domainerrors.ErrUnauthorized)
	}
}
