package memory

import (
	"context"
	"time"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/errors"
)

type notificationRepository struct {
	store *Store
	tx    *txState
}

// NewNotificationRepository creates a NotificationRepository over store.
func NewNotificationRepository(store *Store) repository.NotificationRepository {
	return &notificationRepository{store: store}
}

func (r *notificationRepository) CreateNotification(_ context.Context, notification *entity.Notification) error {
	id := newID()

	err := write(r.store, r.tx, constants.CollectionNotifications, func(st *state) error {
		stored := *notification
		stored.ID = id
		st.notifications[id] = record[entity.Notification]{seq: st.nextSeq(), value: stored}

		return nil
	})
	if err != nil {
		return err
	}
	notification.ID = id

	return nil
}

func (r *notificationRepository) FindNotificationByID(_ context.Context, id string) (*entity.Notification, error) {
	var (
		found *entity.Notification
		ok    bool
	)
	read(r.store, r.tx, func(st *state) {
		var rec record[entity.Notification]
		if rec, ok = st.notifications[id]; ok {
			found = cloneNotification(rec.value)
		}
	})
	if !ok {
		return nil, errors.WithStack(repository.ErrNotificationNotFound)
	}

	return found, nil
}

func (r *notificationRepository) SetNotificationRead(_ context.Context, id string, isRead bool) error {
	return write(r.store, r.tx, constants.CollectionNotifications, func(st *state) error {
		rec, ok := st.notifications[id]
		if !ok {
			return errors.WithStack(repository.ErrNotificationNotFound)
		}
		rec.value.IsRead = isRead
		st.notifications[id] = rec

		return nil
	})
}

func (r *notificationRepository) MarkAllRead(_ context.Context, recipientID string) (int, error) {
	changed := 0
	err := write(r.store, r.tx, constants.CollectionNotifications, func(st *state) error {
		for id, rec := range st.notifications {
			if rec.value.RecipientID != recipientID || rec.value.IsRead {
				continue
			}
			rec.value.IsRead = true
			st.notifications[id] = rec
			changed++
		}

		return nil
	})

	return changed, err
}

func (r *notificationRepository) ListNotifications(_ context.Context, query repository.NotificationQuery) ([]*entity.Notification, error) {
	var out []*entity.Notification
	read(r.store, r.tx, func(st *state) { out = queryNotifications(st, query) })

	return out, nil
}

func (r *notificationRepository) CountUnread(_ context.Context, recipientID string) (int, error) {
	count := 0
	read(r.store, r.tx, func(st *state) {
		for _, rec := range st.notifications {
			if rec.value.RecipientID == recipientID && !rec.value.IsRead {
				count++
			}
		}
	})

	return count, nil
}

func (r *notificationRepository) WatchNotifications(ctx context.Context, query repository.NotificationQuery, onSnapshot func([]*entity.Notification), _ func(error)) (repository.Unsubscribe, error) {
	return watch(ctx, r.store, constants.CollectionNotifications, func(st *state) []*entity.Notification {
		return queryNotifications(st, query)
	}, onSnapshot)
}

func queryNotifications(st *state, query repository.NotificationQuery) []*entity.Notification {
	matched := make([]record[entity.Notification], 0)
	for _, rec := range st.notifications {
		n := rec.value
		if query.RecipientID != "" && n.RecipientID != query.RecipientID {
			continue
		}
		if query.UnreadOnly && n.IsRead {
			continue
		}
		matched = append(matched, rec)
	}
	newestFirst(matched, func(n entity.Notification) time.Time { return n.CreatedAt })
	matched = limit(matched, query.Limit)

	out := make([]*entity.Notification, len(matched))
	for i, rec := range matched {
		out[i] = cloneNotification(rec.value)
	}

	return out
}
