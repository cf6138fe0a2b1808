// Package worker serves the Pub/Sub push endpoint that relays notifications to devices.
package worker

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"kitchenline/config"
	"kitchenline/internal/delivery"
	"kitchenline/internal/delivery/middleware"
	"kitchenline/internal/delivery/worker/handler"
	"kitchenline/internal/errors"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// relayServer accepts push deliveries for the notification relay.
type relayServer struct {
	addr   string
	logger *slog.Logger
	echo   *echo.Echo
}

// ServerParams holds dependencies for the relay server
type ServerParams struct {
	fx.In

	Lc          fx.Lifecycle
	Cfg         *config.Config
	Logger      *slog.Logger
	Registry    *prometheus.Registry
	PushHandler *handler.PushHandler
}

// NewServer builds the relay's echo instance. Pub/Sub only ever calls POST
// /push; the other routes serve health checks and scrapes.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	logger := params.Logger.With(slog.String("component", "notifyworker"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(middleware.NewRequestIDMiddleware(logger).Process)
	e.Use(middleware.NewLoggerMiddleware(logger, params.Cfg).Handle)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{})))
	e.POST("/push", params.PushHandler.HandlePush)

	srv := &relayServer{
		addr:   net.JoinHostPort("0.0.0.0", strconv.Itoa(params.Cfg.HTTP.Port)),
		logger: logger,
		echo:   e,
	}
	params.Lc.Append(fx.Hook{OnStop: srv.stop})

	return srv, nil
}

// Serve blocks until the server fails or is shut down.
func (s *relayServer) Serve(_ context.Context) error {
	s.logger.Info("Notification relay listening", slog.String("host_port", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "notification relay stopped")
	}

	return nil
}

func (s *relayServer) stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, config.HookTimeout)
	defer cancel()

	s.logger.Info("Draining notification relay")

	return errors.WithStack(s.echo.Shutdown(ctx))
}
