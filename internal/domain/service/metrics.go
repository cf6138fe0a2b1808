package service

// Metrics receives operational counters. Kinds are low-cardinality labels such
// as a purpose key prefix or a notification type, never actor IDs.
type Metrics interface {
	FeedOpened(kind string)
	FeedClosed(kind string)
	FeedResubscribed(kind string)
	SnapshotDelivered(kind string)
	SnapshotDropped(kind string)
	OrderTransitioned(from, to string)
	NotificationCreated(notificationType string)
	SessionResolved(outcome string)
	PushRelayed(outcome string, count int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) FeedOpened(string)             {}
func (NopMetrics) FeedClosed(string)             {}
func (NopMetrics) FeedResubscribed(string)       {}
func (NopMetrics) SnapshotDelivered(string)      {}
func (NopMetrics) SnapshotDropped(string)        {}
func (NopMetrics) OrderTransitioned(_, _ string) {}
func (NopMetrics) NotificationCreated(string)    {}
func (NopMetrics) SessionResolved(string)        {}
func (NopMetrics) PushRelayed(string, int)       {}
