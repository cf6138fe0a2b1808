// Package notification delivers push messages to devices.
package notification

import (
	"context"
	"log/slog"

	"kitchenline/config"
	"kitchenline/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/option"
)

// MaxTokensPerBatch is the FCM multicast limit.
const MaxTokensPerBatch = 500

type firebaseService struct {
	client *messaging.Client
}

// Params holds dependencies for the push service, injected by Fx.
type Params struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewPushService returns an FCM-backed PushService, or a logging stand-in
// when Firebase is not configured.
func NewPushService(params Params) (service.PushService, error) {
	cfg := params.Config.Firebase
	if cfg == nil || cfg.CredentialsPath == "" {
		params.Logger.Warn("Firebase not configured, push messages will only be logged")

		return &logOnlyService{logger: params.Logger}, nil
	}

	return NewFirebaseService(params.Ctx, cfg.ProjectID, cfg.CredentialsPath)
}

// NewFirebaseService creates a new Firebase push service instance
func NewFirebaseService(ctx context.Context, projectID, credentialsPath string) (service.PushService, error) {
	var fbConfig *firebase.Config
	if projectID != "" {
		fbConfig = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Firebase app")
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messaging client")
	}

	return &firebaseService{client: client}, nil
}

// SendBatchNotification sends push notifications to multiple device tokens (max 500 tokens)
func (s *firebaseService) SendBatchNotification(ctx context.Context, tokens []string, title, body string, data map[string]string) (successCount, failureCount int, invalidTokens []string, err error) {
	if len(tokens) == 0 {
		return 0, 0, nil, nil
	}

	if len(tokens) > MaxTokensPerBatch {
		return 0, 0, nil, errors.Errorf("token count exceeds limit: %d (max %d)", len(tokens), MaxTokensPerBatch)
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	response, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return 0, 0, nil, errors.Wrap(err, "failed to send multicast notification")
	}

	invalidTokens = make([]string, 0)
	for idx, sendResponse := range response.Responses {
		if sendResponse.Error == nil {
			continue
		}
		if messaging.IsInvalidArgument(sendResponse.Error) || messaging.IsUnregistered(sendResponse.Error) {
			invalidTokens = append(invalidTokens, tokens[idx])
		}
	}

	return response.SuccessCount, response.FailureCount, invalidTokens, nil
}

// logOnlyService stands in for FCM in development.
type logOnlyService struct {
	logger *slog.Logger
}

func (s *logOnlyService) SendBatchNotification(ctx context.Context, tokens []string, title, body string, _ map[string]string) (int, int, []string, error) {
	if len(tokens) > MaxTokensPerBatch {
		return 0, 0, nil, errors.Errorf("token count exceeds limit: %d (max %d)", len(tokens), MaxTokensPerBatch)
	}
	s.logger.InfoContext(ctx, "Push message (not sent)",
		slog.Int("token_count", len(tokens)),
		slog.String("title", title),
		slog.String("body", body),
	)

	return len(tokens), 0, nil, nil
}
