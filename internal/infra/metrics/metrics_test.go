package metrics

import (
	"testing"

	"kitchenline/config"
	"kitchenline/internal/domain/service"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_FeedGauge(t *testing.T) {
	c := NewCollector()

	c.FeedOpened("orders-for-actor")
	c.FeedOpened("orders-for-actor")
	c.FeedClosed("orders-for-actor")
	c.FeedResubscribed("orders-for-actor")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.liveFeeds.WithLabelValues("orders-for-actor")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.feedOpens.WithLabelValues("orders-for-actor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.feedResubscribes.WithLabelValues("orders-for-actor")))
}

func TestCollector_DomainCounters(t *testing.T) {
	c := NewCollector()

	c.OrderTransitioned("pending", "accepted")
	c.NotificationCreated("order-status")
	c.NotificationCreated("order-status")
	c.SessionResolved("authorized")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.orderTransitions.WithLabelValues("pending", "accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.notifications.WithLabelValues("order-status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionResolution.WithLabelValues("authorized")))
}

func TestNew(t *testing.T) {
	res, err := New(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, service.NopMetrics{}, res.Metrics)

	res, err = New(&config.Config{Metrics: &config.MetricsConfig{Enabled: true}})
	require.NoError(t, err)
	require.IsType(t, &Collector{}, res.Metrics)

	res.Metrics.SnapshotDelivered("order")
	families, err := res.Registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "kitchenline_snapshots_delivered_total")
}

func TestCollector_PushRelayed(t *testing.T) {
	c := NewCollector()

	c.PushRelayed("sent", 3)
	c.PushRelayed("sent", 0)
	c.PushRelayed("invalid_token", 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.pushRelays.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pushRelays.WithLabelValues("invalid_token")))
}
