package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kitchenline/config"
	deliverycontext "kitchenline/internal/delivery/context"
	domainerrors "kitchenline/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware_Process(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantKeep bool
	}{
		{"caller id is reused", "req-42", true},
		{"missing id is minted", "", false},
		{"id with spaces is replaced", "req 42", false},
		{"overlong id is replaced", strings.Repeat("x", maxRequestIDLength+1), false},
		{"control characters are replaced", "req\n42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(NewRequestIDMiddleware(slog.Default()).Process)

			var seen string
			e.GET("/", func(c echo.Context) error {
				seen = deliverycontext.GetRequestIDFromContext(c.Request().Context())
				assert.NotNil(t, deliverycontext.GetLogger(c.Request().Context()))

				return c.NoContent(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(deliverycontext.HeaderXRequestID, tt.header)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(deliverycontext.HeaderXRequestID))
			if tt.wantKeep {
				assert.Equal(t, tt.header, seen)
			} else {
				assert.NotEqual(t, tt.header, seen)
			}
		})
	}
}

func TestLoggerMiddleware_Handle(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		path      string
		handler   echo.HandlerFunc
		wantLines []string
		wantEmpty bool
	}{
		{
			name:      "ok request",
			path:      "/api/v1/orders",
			handler:   func(c echo.Context) error { return c.NoContent(http.StatusOK) },
			wantLines: []string{"level=INFO", "status=200", "route=/api/v1/orders"},
		},
		{
			name:      "domain error status",
			path:      "/api/v1/orders",
			handler:   func(echo.Context) error { return errors.WithStack(domainerrors.ErrOrderNotFound) },
			wantLines: []string{"level=WARN", "status=404"},
		},
		{
			name:      "unknown error",
			path:      "/api/v1/orders",
			handler:   func(echo.Context) error { return errors.New("boom") },
			wantLines: []string{"level=ERROR", "status=500"},
		},
		{
			name:      "health is quiet",
			path:      "/health",
			handler:   func(c echo.Context) error { return c.NoContent(http.StatusOK) },
			wantEmpty: true,
		},
		{
			name:      "health is logged in debug",
			debug:     true,
			path:      "/health",
			handler:   func(c echo.Context) error { return c.NoContent(http.StatusOK) },
			wantLines: []string{"route=/health"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			cfg := &config.Config{}
			cfg.Env.Debug = tt.debug

			e := echo.New()
			e.Use(NewLoggerMiddleware(logger, cfg).Handle)
			e.GET(tt.path, tt.handler)

			e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if tt.wantEmpty {
				assert.Empty(t, buf.String())

				return
			}
			for _, line := range tt.wantLines {
				assert.Contains(t, buf.String(), line)
			}
		})
	}
}
