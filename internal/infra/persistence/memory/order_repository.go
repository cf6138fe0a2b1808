package memory

import (
	"context"
	"slices"
	"time"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/errors"
)

type orderRepository struct {
	store *Store
	tx    *txState
}

// NewOrderRepository creates an OrderRepository over store.
func NewOrderRepository(store *Store) repository.OrderRepository {
	return &orderRepository{store: store}
}

func (r *orderRepository) CreateOrder(_ context.Context, order *entity.Order) error {
	id := order.ID
	if id == "" {
		id = newID()
	}

	err := write(r.store, r.tx, constants.CollectionOrders, func(st *state) error {
		if _, ok := st.orders[id]; ok {
			return repository.ErrOrderAlreadyExists
		}
		stored := *cloneOrder(*order)
		stored.ID = id
		st.orders[id] = record[entity.Order]{seq: st.nextSeq(), value: stored}

		return nil
	})
	if err != nil {
		return err
	}
	order.ID = id

	return nil
}

func (r *orderRepository) FindOrderByID(_ context.Context, id string) (*entity.Order, error) {
	var (
		found *entity.Order
		ok    bool
	)
	read(r.store, r.tx, func(st *state) {
		var rec record[entity.Order]
		if rec, ok = st.orders[id]; ok {
			found = cloneOrder(rec.value)
		}
	})
	if !ok {
		return nil, errors.WithStack(repository.ErrOrderNotFound)
	}

	return found, nil
}

func (r *orderRepository) UpdateOrderStatus(_ context.Context, order *entity.Order, expected entity.OrderStatus) error {
	return write(r.store, r.tx, constants.CollectionOrders, func(st *state) error {
		rec, ok := st.orders[order.ID]
		if !ok {
			return errors.WithStack(repository.ErrOrderNotFound)
		}
		if rec.value.Status != expected {
			return errors.WithStack(repository.ErrStatusConflict)
		}
		rec.value.Status = order.Status
		rec.value.UpdatedAt = order.UpdatedAt
		rec.value.ActualDeliveryTime = cloneTime(order.ActualDeliveryTime)
		st.orders[order.ID] = rec

		return nil
	})
}

func (r *orderRepository) UpdateEstimatedDelivery(_ context.Context, id string, eta, updatedAt time.Time) error {
	return write(r.store, r.tx, constants.CollectionOrders, func(st *state) error {
		rec, ok := st.orders[id]
		if !ok {
			return errors.WithStack(repository.ErrOrderNotFound)
		}
		rec.value.EstimatedDeliveryTime = &eta
		rec.value.UpdatedAt = updatedAt
		st.orders[id] = rec

		return nil
	})
}

func (r *orderRepository) ListOrders(_ context.Context, query repository.OrderQuery) ([]*entity.Order, error) {
	var out []*entity.Order
	read(r.store, r.tx, func(st *state) { out = queryOrders(st, query) })

	return out, nil
}

func (r *orderRepository) WatchOrders(ctx context.Context, query repository.OrderQuery, onSnapshot func([]*entity.Order), _ func(error)) (repository.Unsubscribe, error) {
	return watch(ctx, r.store, constants.CollectionOrders, func(st *state) []*entity.Order {
		return queryOrders(st, query)
	}, onSnapshot)
}

func queryOrders(st *state, query repository.OrderQuery) []*entity.Order {
	matched := make([]record[entity.Order], 0)
	for id, rec := range st.orders {
		o := rec.value
		switch {
		case query.OrderID != "" && id != query.OrderID,
			query.CustomerID != "" && o.CustomerID != query.CustomerID,
			query.CookID != "" && o.CookID != query.CookID,
			len(query.Statuses) > 0 && !slices.Contains(query.Statuses, o.Status):
			continue
		}
		matched = append(matched, rec)
	}
	newestFirst(matched, func(o entity.Order) time.Time { return o.CreatedAt })
	matched = limit(matched, query.Limit)

	out := make([]*entity.Order, len(matched))
	for i, rec := range matched {
		out[i] = cloneOrder(rec.value)
	}

	return out
}
