package pubsub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"kitchenline/internal/domain/service"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

const (
	localSubscription    = "projects/local/subscriptions/notification-push"
	localRequestTimeout  = 10 * time.Second
	localMaxDeliveries   = 3
	localRedeliveryDelay = 100 * time.Millisecond
)

// PubSubPushMessage is the body Google Pub/Sub posts to push subscribers.
type PubSubPushMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// localHTTPPublisher posts push envelopes straight to a worker during
// development. A 5xx answer asks for redelivery, as Pub/Sub would do.
type localHTTPPublisher struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	redelivery func() backoff.BackOff
}

// NewLocalHTTPPublisher creates a publisher that pushes to endpoint.
func NewLocalHTTPPublisher(endpoint string, logger *slog.Logger) service.EventPublisher {
	return &localHTTPPublisher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: localRequestTimeout},
		logger:     logger,
		redelivery: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(localRedeliveryDelay), localMaxDeliveries-1)
		},
	}
}

func (p *localHTTPPublisher) PublishNotificationEvent(ctx context.Context, event *service.NotificationEvent) error {
	data, attributes, err := encodeEvent(event)
	if err != nil {
		return err
	}

	var envelope PubSubPushMessage
	envelope.Message.Data = base64.StdEncoding.EncodeToString(data)
	envelope.Message.Attributes = attributes
	envelope.Message.MessageID = event.NotificationID
	envelope.Message.PublishTime = time.Now().UTC().Format(time.RFC3339)
	envelope.Subscription = localSubscription

	body, err := json.Marshal(envelope)
	if err != nil {
		return errors.WithStack(err)
	}

	deliver := func() error {
		return p.post(ctx, body, event.RequestID)
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("Worker asked for redelivery",
			slog.String("notification_id", event.NotificationID),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}
	if err := backoff.RetryNotify(deliver, backoff.WithContext(p.redelivery(), ctx), notify); err != nil {
		return err
	}

	p.logger.Debug("Pushed notification event to worker",
		slog.String("notification_id", event.NotificationID),
		slog.String("recipient_id", event.RecipientID),
	)

	return nil
}

// post delivers one envelope. Only server errors are worth another attempt.
func (p *localHTTPPublisher) post(ctx context.Context, body []byte, requestID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(errors.WithStack(err))
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return errors.Errorf("worker returned status %d", resp.StatusCode)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return backoff.Permanent(errors.Errorf("worker rejected event with status %d", resp.StatusCode))
	}

	return nil
}

func (p *localHTTPPublisher) Close() error {
	p.httpClient.CloseIdleConnections()

	return nil
}
