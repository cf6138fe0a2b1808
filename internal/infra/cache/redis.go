// Package cache holds short-lived shared state: Redis when configured, process
// memory otherwise.
package cache

import (
	"context"
	"log/slog"

	"kitchenline/config"
	"kitchenline/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// NewIdempotencyStore returns a Redis-backed store when redis is enabled and
// an in-process one otherwise.
func NewIdempotencyStore(params Params) (service.IdempotencyStore, error) {
	cfg := params.Config.Redis
	if cfg == nil || !cfg.Enabled {
		params.Logger.Info("Redis disabled, idempotency keys are kept in process memory")

		return NewMemoryIdempotencyStore(defaultTTL), nil
	}
	if cfg.Addr == "" {
		return nil, errors.New("redis.addr is required when redis is enabled")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, config.HookTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to ping Redis")
			}
			params.Logger.Info("Connected to Redis", slog.String("addr", cfg.Addr))

			return nil
		},
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})

	return NewRedisIdempotencyStore(client, cfg.IdempotencyTTL), nil
}
