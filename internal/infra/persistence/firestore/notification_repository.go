package firestore

import (
	"context"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/pkg/errors"
)

// Firestore allows 500 writes per transaction.
const maxWritesPerTransaction = 500

type notificationRepository struct {
	session
}

// NewNotificationRepository creates a NotificationRepository backed by client.
func NewNotificationRepository(client *firestore.Client) repository.NotificationRepository {
	return &notificationRepository{session{client: client}}
}

func (r *notificationRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(constants.CollectionNotifications)
}

func (r *notificationRepository) CreateNotification(ctx context.Context, notification *entity.Notification) error {
	ref := r.collection().NewDoc()
	if err := r.create(ctx, ref, toNotificationDoc(notification)); err != nil {
		return classify(err, "failed to create notification")
	}
	notification.ID = ref.ID

	return nil
}

func (r *notificationRepository) FindNotificationByID(ctx context.Context, id string) (*entity.Notification, error) {
	snap, err := r.get(ctx, r.collection().Doc(id))
	if isNotFound(err) {
		return nil, repository.ErrNotificationNotFound
	}
	if err != nil {
		return nil, classify(err, "failed to find notification by id")
	}

	return decodeNotification(snap)
}

func (r *notificationRepository) SetNotificationRead(ctx context.Context, id string, isRead bool) error {
	err := r.update(ctx, r.collection().Doc(id), []firestore.Update{{Path: fieldIsRead, Value: isRead}})
	if isNotFound(err) {
		return repository.ErrNotificationNotFound
	}
	if err != nil {
		return classify(err, "failed to update notification read flag")
	}

	return nil
}

// MarkAllRead flips unread notifications in chunks that fit one transaction.
func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	q := r.collection().
		Where(fieldRecipientID, "==", recipientID).
		Where(fieldIsRead, "==", false).
		Limit(maxWritesPerTransaction)

	total := 0
	for {
		changed := 0
		err := r.atomically(ctx, func(ctx context.Context, s session) error {
			changed = 0
			snaps, err := s.all(ctx, q)
			if err != nil {
				return classify(err, "failed to list unread notifications")
			}
			for _, snap := range snaps {
				if err := s.update(ctx, snap.Ref, []firestore.Update{{Path: fieldIsRead, Value: true}}); err != nil {
					return classify(err, "failed to mark notification read")
				}
				changed++
			}

			return nil
		})
		if err != nil {
			return total, err
		}
		total += changed
		// Inside a caller's transaction the writes are not visible yet.
		if r.tx != nil || changed < maxWritesPerTransaction {
			return total, nil
		}
	}
}

func (r *notificationRepository) ListNotifications(ctx context.Context, query repository.NotificationQuery) ([]*entity.Notification, error) {
	snaps, err := r.all(ctx, r.query(query))
	if err != nil {
		return nil, classify(err, "failed to list notifications")
	}

	notifications := make([]*entity.Notification, 0, len(snaps))
	for _, snap := range snaps {
		n, err := decodeNotification(snap)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	q := r.collection().
		Where(fieldRecipientID, "==", recipientID).
		Where(fieldIsRead, "==", false)

	agg := q.NewAggregationQuery().WithCount("unread")
	if r.tx != nil {
		agg = agg.Transaction(r.tx)
	}
	result, err := agg.Get(ctx)
	if err != nil {
		return 0, classify(err, "failed to count unread notifications")
	}

	value, ok := result["unread"].(*firestorepb.Value)
	if !ok {
		return 0, errors.New("unexpected aggregation result for unread count")
	}

	return int(value.GetIntegerValue()), nil
}

func (r *notificationRepository) WatchNotifications(ctx context.Context, query repository.NotificationQuery, onSnapshot func([]*entity.Notification), onError func(error)) (repository.Unsubscribe, error) {
	return listen(ctx, r.query(query), decodeNotification, onSnapshot, onError)
}

func (r *notificationRepository) query(query repository.NotificationQuery) firestore.Query {
	q := r.collection().Query
	if query.RecipientID != "" {
		q = q.Where(fieldRecipientID, "==", query.RecipientID)
	}
	if query.UnreadOnly {
		q = q.Where(fieldIsRead, "==", false)
	}
	q = q.OrderBy(fieldCreatedAt, firestore.Desc)
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	return q
}

func decodeNotification(snap *firestore.DocumentSnapshot) (*entity.Notification, error) {
	var doc notificationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode notification %s", snap.Ref.ID)
	}

	return doc.toEntity(snap.Ref.ID), nil
}
