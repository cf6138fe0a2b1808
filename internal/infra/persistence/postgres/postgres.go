package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"kitchenline/config"
	"kitchenline/internal/errors"
	"kitchenline/internal/infra/persistence/model"

	"github.com/cenkalti/backoff/v4"
	pgLib "github.com/slighter12/go-lib/database/postgres"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	poolMonitorInterval       = 5 * time.Second
	poolWaitWarnThreshold     = 50 * time.Millisecond
	connectRetryInitialPeriod = 200 * time.Millisecond
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New opens the PostgreSQL store. On start it waits for the database to accept
// connections, migrates the document tables and starts the pool monitor.
func New(params Params) (*gorm.DB, error) {
	if params.Config.Postgres == nil {
		return nil, errors.New("postgres store selected but postgres config is missing")
	}

	db, err := pgLib.New(params.Config.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create PostgreSQL client")
	}
	db = db.Session(&gorm.Session{
		// Multi-step writes go through TransactionManager.Execute.
		SkipDefaultTransaction: true,
		Logger:                 newGormSlogLogger(params.Logger, params.Config),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get PostgreSQL sql.DB")
	}

	monitor := &poolMonitor{logger: params.Logger, db: sqlDB, interval: poolMonitorInterval}
	monitorCtx, cancelMonitor := context.WithCancel(context.Background())

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, config.HookTimeout)
			defer cancel()

			if err := waitForDatabase(ctx, sqlDB, params.Logger); err != nil {
				return err
			}
			if err := migrate(ctx, db); err != nil {
				return err
			}

			go monitor.run(monitorCtx)

			return nil
		},
		OnStop: func(_ context.Context) error {
			cancelMonitor()

			return errors.WithStack(sqlDB.Close())
		},
	})

	return db, nil
}

// waitForDatabase pings until the database answers or ctx ends.
func waitForDatabase(ctx context.Context, sqlDB *sql.DB, logger *slog.Logger) error {
	b := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(connectRetryInitialPeriod),
		backoff.WithMaxElapsedTime(0),
	), ctx)

	ping := func() error {
		return sqlDB.PingContext(ctx)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("PostgreSQL not reachable yet", slog.Duration("wait", wait), slog.Any("error", err))
	}

	return errors.Wrap(backoff.RetryNotify(ping, b, notify), "failed to ping PostgreSQL")
}

func migrate(ctx context.Context, db *gorm.DB) error {
	return errors.Wrap(db.WithContext(ctx).AutoMigrate(model.All()...), "failed to migrate PostgreSQL schema")
}

// poolMonitor reports connection pool contention. Callers blocked waiting for a
// connection show up as store latency that no single query explains.
type poolMonitor struct {
	logger   *slog.Logger
	db       *sql.DB
	interval time.Duration
}

func (m *poolMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	prev := m.db.Stats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := m.db.Stats()
			m.report(ctx, prev, cur)
			prev = cur
		}
	}
}

func (m *poolMonitor) report(ctx context.Context, prev, cur sql.DBStats) {
	waits := cur.WaitCount - prev.WaitCount
	if waits <= 0 {
		return
	}
	waited := cur.WaitDuration - prev.WaitDuration

	level := slog.LevelDebug
	if waited >= poolWaitWarnThreshold {
		level = slog.LevelWarn
	}

	m.logger.LogAttrs(ctx, level, "PostgreSQL pool wait",
		slog.Int64("waits", waits),
		slog.Duration("waited", waited),
		slog.Duration("avg_wait", waited/time.Duration(waits)),
		slog.Int("open_conns", cur.OpenConnections),
		slog.Int("in_use", cur.InUse),
		slog.Int("idle", cur.Idle),
		slog.Int("max_open_conns", cur.MaxOpenConnections),
	)
}
