package main

import (
	"context"
	"log/slog"
	"os"

	"kitchenline/config"
	"kitchenline/internal/delivery"
	"kitchenline/internal/delivery/api"
	"kitchenline/internal/delivery/api/middleware"
	"kitchenline/internal/delivery/api/router/handler"
	"kitchenline/internal/feed"
	"kitchenline/internal/infra/auth"
	"kitchenline/internal/infra/cache"
	logs "kitchenline/internal/infra/log"
	"kitchenline/internal/infra/metrics"
	"kitchenline/internal/infra/persistence"
	"kitchenline/internal/infra/pubsub"
	"kitchenline/internal/infra/storage"
	"kitchenline/internal/usecase"
	"kitchenline/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			bindSessionTeardown,
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			metrics.New,
			feed.NewRegistry,
		),
		pubsub.Module,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		persistence.Module,
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptHasher,
			auth.NewJWTService,
			auth.NewLocalProvider,
			cache.NewIdempotencyStore,
			storage.NewBlobStorage,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewSessionGate,
			impl.NewOrderService,
			impl.NewNotificationService,
			impl.NewActorService,
			impl.NewMediaService,
			impl.NewFeedService,
			impl.NewDashboardService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewSessionHandler,
			handler.NewOrderHandler,
			handler.NewNotificationHandler,
			handler.NewProfileHandler,
			handler.NewAdminHandler,
			handler.NewFeedHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

// bindSessionTeardown closes every live feed when the signed-in actor goes away.
func bindSessionTeardown(session usecase.SessionUsecase, feeds usecase.FeedUsecase, dashboard usecase.DashboardUsecase) {
	session.OnTeardown(feeds.Teardown)
	session.OnTeardown(dashboard.Close)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
