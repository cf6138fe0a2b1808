// Package persistence selects the document store backend named in config and
// exposes its repositories to the fx graph.
package persistence

import (
	"log/slog"

	"kitchenline/config"
	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/errors"
	"kitchenline/internal/infra/persistence/firestore"
	"kitchenline/internal/infra/persistence/memory"
	"kitchenline/internal/infra/persistence/postgres"

	"go.uber.org/fx"
)

// Module provides the repositories of the configured backend.
var Module = fx.Module("persistence", fx.Provide(New))

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// Repositories is the set of store handles the use cases depend on.
type Repositories struct {
	fx.Out

	TxManager     repository.TransactionManager
	Actors        repository.ActorRepository
	Orders        repository.OrderRepository
	Notifications repository.NotificationRepository
	Credentials   repository.CredentialRepository
}

// New builds the backend selected by store.driver.
func New(params Params) (Repositories, error) {
	driver := params.Config.Store.Driver
	params.Logger.Info("Opening document store", slog.String("driver", driver))

	switch driver {
	case constants.StoreDriverMemory:
		store := memory.NewStore()

		return Repositories{
			TxManager:     memory.NewTransactionManager(store),
			Actors:        memory.NewActorRepository(store),
			Orders:        memory.NewOrderRepository(store),
			Notifications: memory.NewNotificationRepository(store),
			Credentials:   memory.NewCredentialRepository(store),
		}, nil

	case constants.StoreDriverPostgres:
		db, err := postgres.New(postgres.Params{Lifecycle: params.Lifecycle, Config: params.Config, Logger: params.Logger})
		if err != nil {
			return Repositories{}, err
		}
		poll := params.Config.Feed.PollInterval

		return Repositories{
			TxManager:     postgres.NewTransactionManager(db, poll),
			Actors:        postgres.NewActorRepository(db, poll),
			Orders:        postgres.NewOrderRepository(db, poll),
			Notifications: postgres.NewNotificationRepository(db, poll),
			Credentials:   postgres.NewCredentialRepository(db),
		}, nil

	case constants.StoreDriverFirestore:
		client, err := firestore.New(firestore.Params{Lifecycle: params.Lifecycle, Config: params.Config, Logger: params.Logger})
		if err != nil {
			return Repositories{}, err
		}

		return Repositories{
			TxManager:     firestore.NewTransactionManager(client),
			Actors:        firestore.NewActorRepository(client),
			Orders:        firestore.NewOrderRepository(client),
			Notifications: firestore.NewNotificationRepository(client),
			Credentials:   firestore.NewCredentialRepository(client),
		}, nil

	default:
		return Repositories{}, errors.Errorf("unknown store driver %q", driver)
	}
}
