// Package firestore implements the persistence layer on Cloud Firestore. Live
// queries use Firestore snapshot listeners.
package firestore

import (
	"context"
	"log/slog"

	"kitchenline/config"
	"kitchenline/internal/errors"

	"cloud.google.com/go/firestore"
	"go.uber.org/fx"
	"google.golang.org/api/option"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New creates the Firestore client and closes it on stop.
func New(params Params) (*firestore.Client, error) {
	cfg := params.Config.Firestore
	if cfg == nil || cfg.ProjectID == "" {
		return nil, errors.New("firestore store selected but firestore.projectId is missing")
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.HookTimeout)
	defer cancel()

	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, databaseID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Firestore client")
	}

	params.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			params.Logger.Info("Closing Firestore client")

			return client.Close()
		},
	})

	return client, nil
}
