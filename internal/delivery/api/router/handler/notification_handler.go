package handler

import (
	"log/slog"
	"net/http"

	"kitchenline/internal/delivery/api/response"
	"kitchenline/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// NotificationHandlerParams holds dependencies for NotificationHandler, injected by Fx.
type NotificationHandlerParams struct {
	fx.In

	NotificationUC usecase.NotificationUsecase
	Logger         *slog.Logger
}

// NotificationHandler serves the signed-in actor's notifications.
type NotificationHandler struct {
	notificationUC usecase.NotificationUsecase
	logger         *slog.Logger
}

// NewNotificationHandler is the constructor for NotificationHandler.
func NewNotificationHandler(params NotificationHandlerParams) *NotificationHandler {
	return &NotificationHandler{
		notificationUC: params.NotificationUC,
		logger:         params.Logger,
	}
}

// UnreadCountResponse carries the unread badge count.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Changed int `json:"changed"`
}

// List returns the actor's notifications, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var input usecase.ListNotificationsInput
	if err := echo.QueryParamsBinder(c).Bool("unread", &input.UnreadOnly).Int("limit", &input.Limit).BindError(); err != nil {
		return response.BindingError(c, "Invalid notification filter")
	}

	notifications, err := h.notificationUC.List(c.Request().Context(), actor, input)
	if err != nil {
		return err
	}

	return response.List(c, toNotificationResponses(notifications))
}

// UnreadCount returns the number of unread notifications.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	count, err := h.notificationUC.UnreadCount(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, UnreadCountResponse{Unread: count})
}

// MarkRead marks one notification read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	if err := h.notificationUC.MarkRead(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// MarkUnread marks one notification unread.
func (h *NotificationHandler) MarkUnread(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	if err := h.notificationUC.MarkUnread(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead marks every notification of the actor read.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	changed, err := h.notificationUC.MarkAllRead(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, MarkAllReadResponse{Changed: changed})
}
