package firestore

import (
	"context"
	"time"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
)

// Firestore caps "in" filters at 30 values.
const maxInValues = 30

type orderRepository struct {
	session
}

// NewOrderRepository creates an OrderRepository backed by client.
func NewOrderRepository(client *firestore.Client) repository.OrderRepository {
	return &orderRepository{session{client: client}}
}

func (r *orderRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(constants.CollectionOrders)
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *entity.Order) error {
	ref := r.collection().NewDoc()
	if order.ID != "" {
		ref = r.collection().Doc(order.ID)
	}
	if err := r.create(ctx, ref, toOrderDoc(order)); err != nil {
		if isAlreadyExists(err) {
			return repository.ErrOrderAlreadyExists
		}

		return classify(err, "failed to create order")
	}
	order.ID = ref.ID

	return nil
}

func (r *orderRepository) FindOrderByID(ctx context.Context, id string) (*entity.Order, error) {
	snap, err := r.get(ctx, r.collection().Doc(id))
	if isNotFound(err) {
		return nil, repository.ErrOrderNotFound
	}
	if err != nil {
		return nil, classify(err, "failed to find order by id")
	}

	return decodeOrder(snap)
}

// UpdateOrderStatus reads the stored status and writes the new one in the
// same transaction, failing with ErrStatusConflict if it moved.
func (r *orderRepository) UpdateOrderStatus(ctx context.Context, order *entity.Order, expected entity.OrderStatus) error {
	ref := r.collection().Doc(order.ID)

	return r.atomically(ctx, func(ctx context.Context, s session) error {
		snap, err := s.get(ctx, ref)
		if isNotFound(err) {
			return repository.ErrOrderNotFound
		}
		if err != nil {
			return classify(err, "failed to read order status")
		}
		current, err := snap.DataAt(fieldStatus)
		if err != nil {
			return errors.Wrap(err, "failed to read order status")
		}
		if current != string(expected) {
			return repository.ErrStatusConflict
		}

		err = s.update(ctx, ref, []firestore.Update{
			{Path: fieldStatus, Value: string(order.Status)},
			{Path: fieldUpdatedAt, Value: order.UpdatedAt},
			{Path: fieldDelivered, Value: order.ActualDeliveryTime},
		})
		if err != nil {
			return classify(err, "failed to update order status")
		}

		return nil
	})
}

func (r *orderRepository) UpdateEstimatedDelivery(ctx context.Context, id string, eta, updatedAt time.Time) error {
	err := r.update(ctx, r.collection().Doc(id), []firestore.Update{
		{Path: fieldETA, Value: eta},
		{Path: fieldUpdatedAt, Value: updatedAt},
	})
	if isNotFound(err) {
		return repository.ErrOrderNotFound
	}
	if err != nil {
		return classify(err, "failed to update delivery estimate")
	}

	return nil
}

func (r *orderRepository) ListOrders(ctx context.Context, query repository.OrderQuery) ([]*entity.Order, error) {
	if query.OrderID != "" {
		order, err := r.FindOrderByID(ctx, query.OrderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return []*entity.Order{}, nil
		}
		if err != nil {
			return nil, err
		}
		if !matchesOrder(order, query) {
			return []*entity.Order{}, nil
		}

		return []*entity.Order{order}, nil
	}

	q, err := r.query(query)
	if err != nil {
		return nil, err
	}
	snaps, err := r.all(ctx, q)
	if err != nil {
		return nil, classify(err, "failed to list orders")
	}

	orders := make([]*entity.Order, 0, len(snaps))
	for _, snap := range snaps {
		order, err := decodeOrder(snap)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, nil
}

func (r *orderRepository) WatchOrders(ctx context.Context, query repository.OrderQuery, onSnapshot func([]*entity.Order), onError func(error)) (repository.Unsubscribe, error) {
	if query.OrderID != "" {
		q := r.collection().Where(firestore.DocumentID, "==", r.collection().Doc(query.OrderID))

		return listen(ctx, q, decodeOrder, func(orders []*entity.Order) {
			matched := make([]*entity.Order, 0, len(orders))
			for _, o := range orders {
				if matchesOrder(o, query) {
					matched = append(matched, o)
				}
			}
			onSnapshot(matched)
		}, onError)
	}

	q, err := r.query(query)
	if err != nil {
		return nil, err
	}

	return listen(ctx, q, decodeOrder, onSnapshot, onError)
}

func (r *orderRepository) query(query repository.OrderQuery) (firestore.Query, error) {
	q := r.collection().Query
	if query.CustomerID != "" {
		q = q.Where(fieldCustomerID, "==", query.CustomerID)
	}
	if query.CookID != "" {
		q = q.Where(fieldCookID, "==", query.CookID)
	}
	if n := len(query.Statuses); n > 0 {
		if n > maxInValues {
			return q, errors.Errorf("too many statuses in order query: %d", n)
		}
		statuses := make([]string, n)
		for i, s := range query.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where(fieldStatus, "in", statuses)
	}
	q = q.OrderBy(fieldCreatedAt, firestore.Desc)
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	return q, nil
}

func matchesOrder(o *entity.Order, query repository.OrderQuery) bool {
	if query.CustomerID != "" && o.CustomerID != query.CustomerID {
		return false
	}
	if query.CookID != "" && o.CookID != query.CookID {
		return false
	}
	if len(query.Statuses) > 0 {
		for _, s := range query.Statuses {
			if o.Status == s {
				return true
			}
		}

		return false
	}

	return true
}

func decodeOrder(snap *firestore.DocumentSnapshot) (*entity.Order, error) {
	var doc orderDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode order %s", snap.Ref.ID)
	}

	return doc.toEntity(snap.Ref.ID), nil
}
