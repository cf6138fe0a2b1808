package handler

import (
	"log/slog"
	"net/http"

	"kitchenline/internal/delivery/api/response"
	"kitchenline/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// FeedHandlerParams holds dependencies for FeedHandler, injected by Fx.
type FeedHandlerParams struct {
	fx.In

	FeedUC usecase.FeedUsecase
	Logger *slog.Logger
}

// FeedHandler opens live feeds and serves their latest snapshots.
type FeedHandler struct {
	feedUC usecase.FeedUsecase
	logger *slog.Logger
}

// NewFeedHandler is the constructor for FeedHandler.
func NewFeedHandler(params FeedHandlerParams) *FeedHandler {
	return &FeedHandler{
		feedUC: params.FeedUC,
		logger: params.Logger,
	}
}

// FeedKeyResponse names an opened feed.
type FeedKeyResponse struct {
	Key string `json:"key"`
}

// WatchOrders opens the actor's orders feed.
func (h *FeedHandler) WatchOrders(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	key, err := h.feedUC.WatchOrders(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, FeedKeyResponse{Key: key})
}

// LatestOrders returns the latest orders snapshot.
func (h *FeedHandler) LatestOrders(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	orders, fresh := h.feedUC.LatestOrders(actor)

	return response.Snapshot(c, toOrderResponses(orders), fresh)
}

// WatchOrder opens a feed on one order.
func (h *FeedHandler) WatchOrder(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	key, err := h.feedUC.WatchOrder(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, FeedKeyResponse{Key: key})
}

// LatestOrder returns the latest snapshot of one watched order.
func (h *FeedHandler) LatestOrder(c echo.Context) error {
	if _, err := actorFrom(c); err != nil {
		return err
	}

	order, fresh := h.feedUC.LatestOrder(c.Param("id"))

	return response.Snapshot(c, toOrderResponse(order), fresh)
}

// WatchNotifications opens the actor's notifications feed.
func (h *FeedHandler) WatchNotifications(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	key, err := h.feedUC.WatchNotifications(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, FeedKeyResponse{Key: key})
}

// LatestNotifications returns the latest notifications snapshot.
func (h *FeedHandler) LatestNotifications(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	notifications, fresh := h.feedUC.LatestNotifications(actor)

	return response.Snapshot(c, toNotificationResponses(notifications), fresh)
}

// LiveKeys lists the purpose keys of every live feed.
func (h *FeedHandler) LiveKeys(c echo.Context) error {
	return response.List(c, h.feedUC.LiveKeys())
}

// Unwatch closes the feed held under the key path parameter.
func (h *FeedHandler) Unwatch(c echo.Context) error {
	h.feedUC.Unwatch(c.Param("key"))

	return c.NoContent(http.StatusNoContent)
}
