package postgres

import (
	"context"
	"time"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// orderRepository implements repository.OrderRepository using GORM.
type orderRepository struct {
	db           *gorm.DB
	pollInterval time.Duration
}

// NewOrderRepository is the constructor for orderRepository.
func NewOrderRepository(db *gorm.DB, pollInterval time.Duration) repository.OrderRepository {
	return &orderRepository{db: db, pollInterval: pollInterval}
}

// CreateOrder persists a new order and assigns its ID.
func (repo *orderRepository) CreateOrder(ctx context.Context, order *entity.Order) error {
	orderM := fromOrderDomain(order)
	if orderM.ID == "" {
		orderM.ID = uuid.Must(uuid.NewV7()).String()
	}

	if err := repo.db.WithContext(ctx).Create(orderM).Error; err != nil {
		if isTransient(err) {
			return classify(err, "failed to create order")
		}
		if isUniqueConstraintViolation(err) {
			return repository.ErrOrderAlreadyExists
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required order information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create order")
	}
	order.ID = orderM.ID

	return nil
}

// FindOrderByID retrieves an order by its ID.
func (repo *orderRepository) FindOrderByID(ctx context.Context, id string) (*entity.Order, error) {
	var orderM model.OrderModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&orderM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrOrderNotFound
		}

		return nil, classify(err, "failed to find order by id")
	}

	return toOrderDomain(&orderM), nil
}

// UpdateOrderStatus writes the status fields only if the stored status still equals expected.
func (repo *orderRepository) UpdateOrderStatus(ctx context.Context, order *entity.Order, expected entity.OrderStatus) error {
	result := repo.db.WithContext(ctx).
		Model(&model.OrderModel{}).
		Where("id = ? AND status = ?", order.ID, string(expected)).
		Updates(map[string]any{
			"status":               string(order.Status),
			"updated_at":           order.UpdatedAt,
			"actual_delivery_time": order.ActualDeliveryTime,
		})
	if result.Error != nil {
		return classify(result.Error, "failed to update order status")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := repo.FindOrderByID(ctx, order.ID); err != nil {
		return err
	}

	return repository.ErrStatusConflict
}

// UpdateEstimatedDelivery sets the cook's delivery estimate.
func (repo *orderRepository) UpdateEstimatedDelivery(ctx context.Context, id string, eta, updatedAt time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"estimated_delivery_time": eta,
			"updated_at":              updatedAt,
		})
	if result.Error != nil {
		return classify(result.Error, "failed to update delivery estimate")
	}
	if result.RowsAffected == 0 {
		return repository.ErrOrderNotFound
	}

	return nil
}

// ListOrders runs a one-shot query, newest first.
func (repo *orderRepository) ListOrders(ctx context.Context, query repository.OrderQuery) ([]*entity.Order, error) {
	var orderModels []*model.OrderModel

	q := repo.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if query.OrderID != "" {
		q = q.Where("id = ?", query.OrderID)
	}
	if query.CustomerID != "" {
		q = q.Where("customer_id = ?", query.CustomerID)
	}
	if query.CookID != "" {
		q = q.Where("cook_id = ?", query.CookID)
	}
	if len(query.Statuses) > 0 {
		statuses := make([]string, len(query.Statuses))
		for i, s := range query.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	if err := q.Find(&orderModels).Error; err != nil {
		return nil, classify(err, "failed to list orders")
	}

	orders := make([]*entity.Order, 0, len(orderModels))
	for _, orderM := range orderModels {
		orders = append(orders, toOrderDomain(orderM))
	}

	return orders, nil
}

// WatchOrders polls ListOrders and emits changed result sets.
func (repo *orderRepository) WatchOrders(ctx context.Context, query repository.OrderQuery, onSnapshot func([]*entity.Order), onError func(error)) (repository.Unsubscribe, error) {
	return poll(withFeedPoll(ctx, constants.CollectionOrders), repo.pollInterval, func(ctx context.Context) ([]*entity.Order, error) {
		return repo.ListOrders(ctx, query)
	}, onSnapshot, onError)
}

// --- Mapper Functions ---

func toOrderDomain(data *model.OrderModel) *entity.Order {
	if data == nil {
		return nil
	}

	items := make([]entity.OrderItem, 0, len(data.Items))
	for _, item := range data.Items {
		items = append(items, entity.OrderItem{Name: item.Name, UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}

	return &entity.Order{
		ID:                    data.ID,
		CustomerID:            data.CustomerID,
		CookID:                data.CookID,
		Items:                 items,
		Subtotal:              data.Subtotal,
		DeliveryFee:           data.DeliveryFee,
		Total:                 data.Total,
		Status:                entity.OrderStatus(data.Status),
		PaymentStatus:         entity.PaymentStatus(data.PaymentStatus),
		DeliveryAddress:       data.DeliveryAddress,
		CreatedAt:             data.CreatedAt,
		UpdatedAt:             data.UpdatedAt,
		EstimatedDeliveryTime: data.EstimatedDeliveryTime,
		ActualDeliveryTime:    data.ActualDeliveryTime,
	}
}

func fromOrderDomain(data *entity.Order) *model.OrderModel {
	if data == nil {
		return nil
	}

	items := make([]model.OrderItemModel, 0, len(data.Items))
	for _, item := range data.Items {
		items = append(items, model.OrderItemModel{Name: item.Name, UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}

	return &model.OrderModel{
		ID:                    data.ID,
		CustomerID:            data.CustomerID,
		CookID:                data.CookID,
		Items:                 items,
		Subtotal:              data.Subtotal,
		DeliveryFee:           data.DeliveryFee,
		Total:                 data.Total,
		Status:                string(data.Status),
		PaymentStatus:         string(data.PaymentStatus),
		DeliveryAddress:       data.DeliveryAddress,
		EstimatedDeliveryTime: data.EstimatedDeliveryTime,
		ActualDeliveryTime:    data.ActualDeliveryTime,
		CreatedAt:             data.CreatedAt,
		UpdatedAt:             data.UpdatedAt,
	}
}
