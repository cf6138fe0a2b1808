// Package metrics exports operational counters to Prometheus.
package metrics

import (
	"kitchenline/config"
	"kitchenline/internal/domain/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

const metricsNamespace = "kitchenline"

// Collector is a prometheus.Collector that also implements service.Metrics.
type Collector struct {
	liveFeeds         *prometheus.GaugeVec
	feedOpens         *prometheus.CounterVec
	feedResubscribes  *prometheus.CounterVec
	snapshots         *prometheus.CounterVec
	droppedSnapshots  *prometheus.CounterVec
	orderTransitions  *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	sessionResolution *prometheus.CounterVec
	pushRelays        *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		liveFeeds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "live_feeds",
				Help:      "The number of open change-feed subscriptions.",
			}, []string{"kind"},
		),
		feedOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "feed_opens_total",
				Help:      "The number of change-feed subscriptions opened.",
			}, []string{"kind"},
		),
		feedResubscribes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "feed_resubscribes_total",
				Help:      "The number of times a broken change feed was re-established.",
			}, []string{"kind"},
		),
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "snapshots_delivered_total",
				Help:      "The number of snapshots handed to subscribers.",
			}, []string{"kind"},
		),
		droppedSnapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "snapshots_dropped_total",
				Help:      "The number of snapshots discarded because their subscription was closed or replaced.",
			}, []string{"kind"},
		),
		orderTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "order_transitions_total",
				Help:      "The number of committed order status transitions.",
			}, []string{"from", "to"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "notifications_created_total",
				Help:      "The number of notification records written.",
			}, []string{"type"},
		),
		sessionResolution: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "session_resolutions_total",
				Help:      "The number of times the session gate resolved, by outcome.",
			}, []string{"outcome"},
		),
		pushRelays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "push_relays_total",
				Help:      "The number of device pushes attempted by the relay worker, by outcome.",
			}, []string{"outcome"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.liveFeeds.Describe(ch)
	c.feedOpens.Describe(ch)
	c.feedResubscribes.Describe(ch)
	c.snapshots.Describe(ch)
	c.droppedSnapshots.Describe(ch)
	c.orderTransitions.Describe(ch)
	c.notifications.Describe(ch)
	c.sessionResolution.Describe(ch)
	c.pushRelays.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.liveFeeds.Collect(ch)
	c.feedOpens.Collect(ch)
	c.feedResubscribes.Collect(ch)
	c.snapshots.Collect(ch)
	c.droppedSnapshots.Collect(ch)
	c.orderTransitions.Collect(ch)
	c.notifications.Collect(ch)
	c.sessionResolution.Collect(ch)
	c.pushRelays.Collect(ch)
}

func (c *Collector) FeedOpened(kind string) {
	c.feedOpens.WithLabelValues(kind).Inc()
	c.liveFeeds.WithLabelValues(kind).Inc()
}

func (c *Collector) FeedClosed(kind string) {
	c.liveFeeds.WithLabelValues(kind).Dec()
}

func (c *Collector) FeedResubscribed(kind string) {
	c.feedResubscribes.WithLabelValues(kind).Inc()
}

func (c *Collector) SnapshotDelivered(kind string) {
	c.snapshots.WithLabelValues(kind).Inc()
}

func (c *Collector) SnapshotDropped(kind string) {
	c.droppedSnapshots.WithLabelValues(kind).Inc()
}

func (c *Collector) OrderTransitioned(from, to string) {
	c.orderTransitions.WithLabelValues(from, to).Inc()
}

func (c *Collector) NotificationCreated(notificationType string) {
	c.notifications.WithLabelValues(notificationType).Inc()
}

func (c *Collector) SessionResolved(outcome string) {
	c.sessionResolution.WithLabelValues(outcome).Inc()
}

func (c *Collector) PushRelayed(outcome string, count int) {
	if count <= 0 {
		return
	}
	c.pushRelays.WithLabelValues(outcome).Add(float64(count))
}

// Result is the fx output of New.
type Result struct {
	fx.Out

	Metrics  service.Metrics
	Registry *prometheus.Registry
}

// New registers the collector with a fresh registry when metrics are enabled
// and hands out NopMetrics otherwise.
func New(cfg *config.Config) (Result, error) {
	registry := prometheus.NewRegistry()
	if cfg.Metrics == nil || !cfg.Metrics.Enabled {
		return Result{Metrics: service.NopMetrics{}, Registry: registry}, nil
	}

	collector := NewCollector()
	if err := registry.Register(collector); err != nil {
		return Result{}, err
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return Result{}, err
	}

	return Result{Metrics: collector, Registry: registry}, nil
}
