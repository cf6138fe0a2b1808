package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kitchenline/config"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

type feedPollKey struct{}

// withFeedPoll marks queries issued by a polling change feed. They repeat every
// poll interval, so they are logged at debug level only.
func withFeedPoll(ctx context.Context, collection string) context.Context {
	return context.WithValue(ctx, feedPollKey{}, collection)
}

func feedPollCollection(ctx context.Context) (string, bool) {
	collection, ok := ctx.Value(feedPollKey{}).(string)

	return collection, ok
}

// gormSlogLogger routes gorm's statement log into slog.
type gormSlogLogger struct {
	logger        *slog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

func newGormSlogLogger(baseLogger *slog.Logger, cfg *config.Config) logger.Interface {
	level := logger.Warn
	if cfg != nil && cfg.Env.Debug {
		level = logger.Info
	}

	threshold := defaultSlowQueryThreshold
	if cfg != nil && cfg.Store != nil && cfg.Store.SlowQueryThreshold > 0 {
		threshold = cfg.Store.SlowQueryThreshold
	}

	return &gormSlogLogger{
		logger:        baseLogger.With(slog.String("component", "postgres")),
		level:         level,
		slowThreshold: threshold,
	}
}

func (l *gormSlogLogger) LogMode(level logger.LogLevel) logger.Interface {
	cloned := *l
	cloned.level = level

	return &cloned
}

func (l *gormSlogLogger) Info(ctx context.Context, msg string, args ...any) {
	l.message(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *gormSlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.message(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *gormSlogLogger) Error(ctx context.Context, msg string, args ...any) {
	l.message(ctx, logger.Error, slog.LevelError, msg, args)
}

func (l *gormSlogLogger) message(ctx context.Context, min logger.LogLevel, level slog.Level, msg string, args []any) {
	if l.level < min {
		return
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf(msg, args...))
}

// Trace logs failed statements, slow statements and, in debug mode, every
// statement. Missing rows are an expected outcome and never logged as errors.
func (l *gormSlogLogger) Trace(ctx context.Context, begin time.Time, sqlAndRowsFn func() (string, int64), err error) {
	if l.level == logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold
	collection, polling := feedPollCollection(ctx)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case failed && l.level >= logger.Error:
		level, msg = slog.LevelError, "Postgres query failed"
	case slow && l.level >= logger.Warn:
		level, msg = slog.LevelWarn, "Postgres slow query"
	case l.level >= logger.Info:
		level, msg = slog.LevelInfo, "Postgres query"
	default:
		return
	}
	if polling && level < slog.LevelError {
		level = slog.LevelDebug
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}

	sql, rows := sqlAndRowsFn()
	attrs := []slog.Attr{
		slog.Duration("elapsed", elapsed),
		slog.Int64("rows", rows),
		slog.String("sql", sql),
	}
	if polling {
		attrs = append(attrs, slog.String("feed_collection", collection))
	}
	if failed {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if slow {
		attrs = append(attrs, slog.Duration("slow_threshold", l.slowThreshold))
	}

	l.logger.LogAttrs(ctx, level, msg, attrs...)
}
