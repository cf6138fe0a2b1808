package postgres

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"kitchenline/config"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newCapturingGormLogger(debug bool) (*gormSlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := &config.Config{Store: &config.StoreConfig{SlowQueryThreshold: 50 * time.Millisecond}}
	cfg.Env.Debug = debug

	return newGormSlogLogger(base, cfg).(*gormSlogLogger), &buf
}

func statement() (string, int64) {
	return `SELECT * FROM "orders"`, 3
}

func TestGormSlogLogger_Trace(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		ctx       context.Context
		elapsed   time.Duration
		err       error
		wantEmpty bool
		want      []string
	}{
		{name: "quiet query outside debug", ctx: context.Background(), wantEmpty: true},
		{name: "query in debug", debug: true, ctx: context.Background(), want: []string{"level=INFO", "Postgres query", "rows=3"}},
		{name: "slow query", ctx: context.Background(), elapsed: time.Second, want: []string{"level=WARN", "Postgres slow query", "slow_threshold=50ms"}},
		{name: "failed query", ctx: context.Background(), err: assert.AnError, want: []string{"level=ERROR", "Postgres query failed"}},
		{name: "record not found", ctx: context.Background(), err: gorm.ErrRecordNotFound, wantEmpty: true},
		{name: "slow feed poll is demoted", ctx: withFeedPoll(context.Background(), "orders"), elapsed: time.Second, want: []string{"level=DEBUG", "feed_collection=orders"}},
		{name: "failed feed poll stays an error", ctx: withFeedPoll(context.Background(), "orders"), err: assert.AnError, want: []string{"level=ERROR", "feed_collection=orders"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newCapturingGormLogger(tt.debug)

			l.Trace(tt.ctx, time.Now().Add(-tt.elapsed), statement, tt.err)

			if tt.wantEmpty {
				assert.Empty(t, buf.String())

				return
			}
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestGormSlogLogger_DefaultThreshold(t *testing.T) {
	l := newGormSlogLogger(slog.Default(), &config.Config{}).(*gormSlogLogger)

	assert.Equal(t, defaultSlowQueryThreshold, l.slowThreshold)
}
