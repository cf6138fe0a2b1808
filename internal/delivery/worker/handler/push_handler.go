package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"kitchenline/config"
	deliverycontext "kitchenline/internal/delivery/context"
	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/errors"
	"kitchenline/internal/infra/notification"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// PubSubMessage represents the structure of a Pub/Sub push message
type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// retryableError marks a failure that should make Pub/Sub redeliver the message.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func newRetryableError(err error) error {
	return &retryableError{err: err}
}

func isRetryableError(err error) bool {
	var re *retryableError

	return errors.As(err, &re)
}

// deliveryResult summarises one relayed notification.
type deliveryResult struct {
	skipped       bool
	sent          int
	failed        int
	invalidTokens []string
}

// Relay outcomes reported to service.Metrics.
const (
	relaySent         = "sent"
	relayFailed       = "failed"
	relayInvalidToken = "invalid_token"
	relaySkipped      = "skipped"
	relayRetry        = "retry"
)

func (r deliveryResult) record(m service.Metrics) {
	if r.skipped {
		m.PushRelayed(relaySkipped, 1)

		return
	}
	m.PushRelayed(relaySent, r.sent)
	m.PushRelayed(relayFailed, r.failed-len(r.invalidTokens))
	m.PushRelayed(relayInvalidToken, len(r.invalidTokens))
}

// PushHandler relays committed notification records to the recipient's devices.
type PushHandler struct {
	verifyPushAuth bool
	logger         *slog.Logger
	pushSvc        service.PushService
	txManager      repository.TransactionManager
	actorRepo      repository.ActorRepository
	metrics        service.Metrics
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config    *config.Config
	Logger    *slog.Logger
	PushSvc   service.PushService
	TxManager repository.TransactionManager
	ActorRepo repository.ActorRepository
	Metrics   service.Metrics
}

// NewPushHandler creates a new Pub/Sub push handler
func NewPushHandler(params PushHandlerParams) *PushHandler {
	verifyPushAuth := params.Config.PubSub != nil &&
		params.Config.PubSub.Provider == constants.PubSubProviderGoogle &&
		params.Config.Env.Env != constants.EnvDevelop

	return &PushHandler{
		verifyPushAuth: verifyPushAuth,
		logger:         params.Logger,
		pushSvc:        params.PushSvc,
		txManager:      params.TxManager,
		actorRepo:      params.ActorRepo,
		metrics:        params.Metrics,
	}
}

// HandlePush handles incoming Pub/Sub push messages.
// Malformed messages are acked with 400 so they are not redelivered forever.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verifyPushAuth {
		if err := verifyPubSubToken(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg PubSubMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Worker] Failed to decode message data", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	var event service.NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.logger.Error("[Worker] Failed to parse notification event", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}
	if event.RecipientID == "" {
		h.logger.Warn("[Worker] Notification event without recipient",
			slog.String("notification_id", event.NotificationID),
		)

		return c.NoContent(http.StatusBadRequest)
	}

	requestID := h.extractRequestID(ctx, &pushMsg, &event)
	reqLogger := h.logger.With(slog.String("request_id", requestID))
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	reqLogger.Info("[Worker] Processing notification event",
		slog.String("notification_id", event.NotificationID),
		slog.String("recipient_id", event.RecipientID),
		slog.String("type", event.Type),
	)

	result, err := h.processNotification(ctx, reqLogger, &event)
	if err != nil {
		reqLogger.Error("[Worker] Failed to process notification",
			slog.String("notification_id", event.NotificationID),
			slog.Any("error", err),
			slog.Bool("retryable", isRetryableError(err)),
		)
		if isRetryableError(err) {
			h.metrics.PushRelayed(relayRetry, 1)

			return c.NoContent(http.StatusServiceUnavailable)
		}

		return c.NoContent(http.StatusOK)
	}

	result.record(h.metrics)
	reqLogger.Info("[Worker] Notification relayed",
		slog.String("notification_id", event.NotificationID),
		slog.Int("total_sent", result.sent),
		slog.Int("total_failed", result.failed),
		slog.Int("invalid_tokens", len(result.invalidTokens)),
	)

	return c.NoContent(http.StatusOK)
}

// extractRequestID prefers message attributes, then the event payload, then
// the inbound request, and finally generates a fresh ID.
func (h *PushHandler) extractRequestID(ctx context.Context, pushMsg *PubSubMessage, event *service.NotificationEvent) string {
	if requestID, ok := pushMsg.Message.Attributes["request_id"]; ok && requestID != "" {
		return requestID
	}

	if event.RequestID != "" {
		return event.RequestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

func (h *PushHandler) processNotification(ctx context.Context, logger *slog.Logger, event *service.NotificationEvent) (deliveryResult, error) {
	recipient, err := h.actorRepo.FindActorByID(ctx, event.RecipientID)
	switch {
	case errors.Is(err, repository.ErrActorNotFound):
		logger.Info("[Worker] Recipient no longer exists",
			slog.String("notification_id", event.NotificationID),
			slog.String("recipient_id", event.RecipientID),
		)

		return deliveryResult{skipped: true}, nil
	case errors.Is(err, repository.ErrStoreUnavailable):
		return deliveryResult{}, newRetryableError(err)
	case err != nil:
		return deliveryResult{}, errors.Wrap(err, "load recipient")
	}

	if len(recipient.PushTokens) == 0 {
		logger.Info("[Worker] Recipient has no registered devices",
			slog.String("notification_id", event.NotificationID),
		)

		return deliveryResult{skipped: true}, nil
	}

	title, body, data := prepareNotificationContent(event)
	result := h.sendBatchedNotifications(ctx, logger, recipient.PushTokens, title, body, data)
	h.cleanupInvalidTokens(ctx, logger, recipient.ID, result.invalidTokens)

	return result, nil
}

// prepareNotificationContent creates the push title, body and data payload.
func prepareNotificationContent(event *service.NotificationEvent) (title, body string, data map[string]string) {
	data = map[string]string{
		"notification_id": event.NotificationID,
		"type":            event.Type,
	}
	if event.OrderID != "" {
		data["order_id"] = event.OrderID
	}

	return event.Title, event.Message, data
}

func (h *PushHandler) sendBatchedNotifications(ctx context.Context, logger *slog.Logger, tokens []string, title, body string, data map[string]string) deliveryResult {
	var result deliveryResult

	for idx := 0; idx < len(tokens); idx += notification.MaxTokensPerBatch {
		end := min(idx+notification.MaxTokensPerBatch, len(tokens))
		batch := tokens[idx:end]

		successCount, failureCount, batchInvalidTokens, err := h.pushSvc.SendBatchNotification(ctx, batch, title, body, data)
		if err != nil {
			logger.Error("[Worker] Failed to send batch",
				slog.Int("batch_start", idx),
				slog.Int("batch_size", len(batch)),
				slog.Any("error", err),
			)
			result.failed += len(batch)

			continue
		}

		result.sent += successCount
		result.failed += failureCount
		result.invalidTokens = append(result.invalidTokens, batchInvalidTokens...)
	}

	return result
}

// cleanupInvalidTokens drops tokens FCM reported as unregistered from the
// recipient record. The record is re-read inside the transaction so tokens
// added concurrently survive.
func (h *PushHandler) cleanupInvalidTokens(ctx context.Context, logger *slog.Logger, recipientID string, invalidTokens []string) {
	if len(invalidTokens) == 0 {
		return
	}

	var removed int
	err := h.txManager.Execute(ctx, func(txRepoFactory repository.RepositoryFactory) error {
		actors := txRepoFactory.NewActorRepository()
		actor, err := actors.FindActorByID(ctx, recipientID)
		if err != nil {
			return errors.WithStack(err)
		}

		removed = actor.RemovePushTokens(invalidTokens)
		if removed == 0 {
			return nil
		}

		return errors.WithStack(actors.UpdateActor(ctx, actor))
	})
	if err != nil {
		logger.Warn("[Worker] Failed to remove invalid push tokens",
			slog.String("recipient_id", recipientID),
			slog.Any("error", err),
		)

		return
	}

	logger.Info("[Worker] Removed invalid push tokens",
		slog.String("recipient_id", recipientID),
		slog.Int("removed", removed),
	)
}

// verifyPubSubToken verifies the OIDC token Google Pub/Sub attaches to push requests.
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
func verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	// The audience is this endpoint's URL.
	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)

	payload, err := idtoken.Validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
