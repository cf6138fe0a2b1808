package memory

import (
	"cmp"
	"slices"
	"time"

	"kitchenline/internal/domain/entity"
)

func cloneActor(a entity.Actor) *entity.Actor {
	a.PushTokens = slices.Clone(a.PushTokens)
	if a.Profile.DeliveryFee != nil {
		fee := *a.Profile.DeliveryFee
		a.Profile.DeliveryFee = &fee
	}

	return &a
}

func cloneOrder(o entity.Order) *entity.Order {
	o.Items = slices.Clone(o.Items)
	o.EstimatedDeliveryTime = cloneTime(o.EstimatedDeliveryTime)
	o.ActualDeliveryTime = cloneTime(o.ActualDeliveryTime)

	return &o
}

func cloneNotification(n entity.Notification) *entity.Notification {
	return &n
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t

	return &v
}

// newestFirst orders records by creation time descending, falling back to
// insertion order for equal timestamps.
func newestFirst[T any](records []record[T], createdAt func(T) time.Time) {
	slices.SortFunc(records, func(a, b record[T]) int {
		if c := createdAt(b.value).Compare(createdAt(a.value)); c != 0 {
			return c
		}

		return cmp.Compare(b.seq, a.seq)
	})
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}

	return items
}
