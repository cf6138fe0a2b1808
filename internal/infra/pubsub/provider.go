// Package pubsub hands committed notification records to the push relay.
package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"kitchenline/config"
	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Module provides the EventPublisher selected by pubsub.provider.
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
)

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewEventPublisher creates the configured publisher. Without a provider the
// in-app notification records are still written; only device pushes are skipped.
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	cfg := params.Config.PubSub
	logger := params.Logger.With(slog.String("component", "pubsub"))

	if cfg == nil || cfg.Provider == "" || cfg.Provider == constants.PubSubProviderNoop {
		logger.Info("Device push relay disabled")

		return &noopPublisher{logger: logger}, nil
	}

	var (
		publisher service.EventPublisher
		err       error
	)
	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("pubsub.localEndpoint is required for the local provider")
		}
		publisher = NewLocalHTTPPublisher(cfg.LocalEndpoint, logger)

	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" || cfg.TopicID == "" {
			return nil, errors.New("pubsub.projectId and pubsub.topicId are required for the google provider")
		}
		publisher, err = NewGooglePubSubPublisher(params.Ctx, cfg.ProjectID, cfg.TopicID, logger)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("unknown pubsub provider: %s", cfg.Provider)
	}

	logger.Info("Device push relay enabled", slog.String("provider", cfg.Provider))
	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) PublishNotificationEvent(_ context.Context, event *service.NotificationEvent) error {
	p.logger.Debug("Skipping device push",
		slog.String("notification_id", event.NotificationID),
		slog.String("recipient_id", event.RecipientID),
	)

	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}

// encodeEvent returns the message payload and the attributes used for
// subscription filtering and tracing.
func encodeEvent(event *service.NotificationEvent) ([]byte, map[string]string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode notification event")
	}

	attributes := map[string]string{
		"notification_id": event.NotificationID,
		"recipient_id":    event.RecipientID,
		"type":            event.Type,
	}
	if event.OrderID != "" {
		attributes["order_id"] = event.OrderID
	}
	if event.RequestID != "" {
		attributes["request_id"] = event.RequestID
	}

	return data, attributes, nil
}
