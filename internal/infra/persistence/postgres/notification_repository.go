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

// notificationRepository implements repository.NotificationRepository using GORM.
type notificationRepository struct {
	db           *gorm.DB
	pollInterval time.Duration
}

// NewNotificationRepository is the constructor for notificationRepository.
func NewNotificationRepository(db *gorm.DB, pollInterval time.Duration) repository.NotificationRepository {
	return &notificationRepository{db: db, pollInterval: pollInterval}
}

// CreateNotification inserts a new notification row. It never upserts.
func (repo *notificationRepository) CreateNotification(ctx context.Context, notification *entity.Notification) error {
	notificationM := fromNotificationDomain(notification)
	notificationM.ID = uuid.Must(uuid.NewV7()).String()

	if err := repo.db.WithContext(ctx).Create(notificationM).Error; err != nil {
		if isTransient(err) {
			return classify(err, "failed to create notification")
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required notification information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create notification")
	}
	notification.ID = notificationM.ID

	return nil
}

// FindNotificationByID retrieves a notification by its unique ID.
func (repo *notificationRepository) FindNotificationByID(ctx context.Context, id string) (*entity.Notification, error) {
	var notificationM model.NotificationModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&notificationM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotificationNotFound
		}

		return nil, classify(err, "failed to find notification by ID")
	}

	return toNotificationDomain(&notificationM), nil
}

// SetNotificationRead sets the read flag of one notification.
func (repo *notificationRepository) SetNotificationRead(ctx context.Context, id string, isRead bool) error {
	result := repo.db.WithContext(ctx).
		Model(&model.NotificationModel{}).
		Where("id = ?", id).
		Update("is_read", isRead)
	if result.Error != nil {
		return classify(result.Error, "failed to update notification read flag")
	}
	if result.RowsAffected == 0 {
		// Postgres reports matched rows, so zero means the row is missing.
		return repository.ErrNotificationNotFound
	}

	return nil
}

// MarkAllRead marks every unread notification of recipientID as read.
func (repo *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.NotificationModel{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, classify(result.Error, "failed to mark notifications read")
	}

	return int(result.RowsAffected), nil
}

// ListNotifications runs a one-shot query, newest first.
func (repo *notificationRepository) ListNotifications(ctx context.Context, query repository.NotificationQuery) ([]*entity.Notification, error) {
	var notificationModels []*model.NotificationModel

	q := repo.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if query.RecipientID != "" {
		q = q.Where("recipient_id = ?", query.RecipientID)
	}
	if query.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	if err := q.Find(&notificationModels).Error; err != nil {
		return nil, classify(err, "failed to list notifications")
	}

	notifications := make([]*entity.Notification, 0, len(notificationModels))
	for _, notificationM := range notificationModels {
		notifications = append(notifications, toNotificationDomain(notificationM))
	}

	return notifications, nil
}

// CountUnread returns the number of unread notifications of recipientID.
func (repo *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int64
	if err := repo.db.WithContext(ctx).
		Model(&model.NotificationModel{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error; err != nil {
		return 0, classify(err, "failed to count unread notifications")
	}

	return int(count), nil
}

// WatchNotifications polls ListNotifications and emits changed result sets.
func (repo *notificationRepository) WatchNotifications(ctx context.Context, query repository.NotificationQuery, onSnapshot func([]*entity.Notification), onError func(error)) (repository.Unsubscribe, error) {
	return poll(withFeedPoll(ctx, constants.CollectionNotifications), repo.pollInterval, func(ctx context.Context) ([]*entity.Notification, error) {
		return repo.ListNotifications(ctx, query)
	}, onSnapshot, onError)
}

// --- Mapper Functions ---

func toNotificationDomain(data *model.NotificationModel) *entity.Notification {
	if data == nil {
		return nil
	}

	return &entity.Notification{
		ID:          data.ID,
		RecipientID: data.RecipientID,
		Type:        entity.NotificationType(data.Type),
		Title:       data.Title,
		Message:     data.Message,
		OrderID:     data.OrderID,
		IsRead:      data.IsRead,
		CreatedAt:   data.CreatedAt,
	}
}

func fromNotificationDomain(data *entity.Notification) *model.NotificationModel {
	if data == nil {
		return nil
	}

	return &model.NotificationModel{
		ID:          data.ID,
		RecipientID: data.RecipientID,
		Type:        string(data.Type),
		Title:       data.Title,
		Message:     data.Message,
		OrderID:     data.OrderID,
		IsRead:      data.IsRead,
		CreatedAt:   data.CreatedAt,
	}
}
