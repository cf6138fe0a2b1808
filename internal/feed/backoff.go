package feed

import (
	"context"
	"log/slog"
	"time"

	"kitchenline/config"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/errors"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
)

// BackoffConfig controls how failed reads are re-issued.
type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime of zero retries until the context ends.
	MaxElapsedTime time.Duration
}

// BackoffFromConfig reads the feed section of the application config.
func BackoffFromConfig(cfg *config.Config) BackoffConfig {
	if cfg == nil || cfg.Feed == nil {
		return BackoffConfig{}
	}

	return BackoffConfig{
		InitialInterval: cfg.Feed.InitialInterval,
		MaxInterval:     cfg.Feed.MaxInterval,
		MaxElapsedTime:  cfg.Feed.MaxElapsedTime,
	}
}

func (c BackoffConfig) newBackOff(ctx context.Context) backoff.BackOffContext {
	initial := c.InitialInterval
	if initial <= 0 {
		initial = defaultInitialInterval
	}
	maxInterval := c.MaxInterval
	if maxInterval <= 0 {
		maxInterval = defaultMaxInterval
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(maxInterval),
		backoff.WithMaxElapsedTime(c.MaxElapsedTime),
	)

	return backoff.WithContext(b, ctx)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, repository.ErrStoreUnavailable)
}

// Retry runs read until it succeeds, fails with a non-transient error, or the
// backoff gives up. Only reads and idempotent writes may be retried this way.
func Retry[T any](ctx context.Context, cfg BackoffConfig, logger *slog.Logger, name string, read func(context.Context) (T, error)) (T, error) {
	op := func() (T, error) {
		value, err := read(ctx)
		if err != nil && !IsTransient(err) {
			return value, backoff.Permanent(err)
		}

		return value, err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("Retrying store read",
			slog.String("read", name),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}

	value, err := backoff.RetryNotifyWithData(op, cfg.newBackOff(ctx), notify)
	if err != nil {
		return value, errors.WithStack(err)
	}

	return value, nil
}
