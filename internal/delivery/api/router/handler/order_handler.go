package handler

import (
	"log/slog"
	"net/http"
	"time"

	"kitchenline/internal/delivery/api/response"
	deliverycontext "kitchenline/internal/delivery/context"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// HeaderIdempotencyKey makes a retried order placement return the first order.
const HeaderIdempotencyKey = "Idempotency-Key"

// OrderHandlerParams holds dependencies for OrderHandler, injected by Fx.
type OrderHandlerParams struct {
	fx.In

	OrderUC        usecase.OrderUsecase
	NotificationUC usecase.NotificationUsecase
	Logger         *slog.Logger
}

// OrderHandler serves order placement, lookup, transitions and order chat.
type OrderHandler struct {
	orderUC        usecase.OrderUsecase
	notificationUC usecase.NotificationUsecase
	logger         *slog.Logger
}

// NewOrderHandler is the constructor for OrderHandler.
func NewOrderHandler(params OrderHandlerParams) *OrderHandler {
	return &OrderHandler{
		orderUC:        params.OrderUC,
		notificationUC: params.NotificationUC,
		logger:         params.Logger,
	}
}

// PlaceOrderRequest represents the request body for placing an order.
type PlaceOrderRequest struct {
	CookID          string                   `json:"cookId" validate:"required"`
	Items           []usecase.OrderItemInput `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string                   `json:"deliveryAddress" validate:"required"`
}

// TransitionRequest represents a status change. From is optional.
type TransitionRequest struct {
	To   entity.OrderStatus `json:"to" validate:"required"`
	From entity.OrderStatus `json:"from"`
}

// EstimatedDeliveryRequest sets the cook's delivery estimate.
type EstimatedDeliveryRequest struct {
	EstimatedDeliveryTime time.Time `json:"estimatedDeliveryTime" validate:"required"`
}

// ChatMessageRequest is a message to the order's counterparty.
type ChatMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// PlaceOrder handles order placement by a customer.
func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid order input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, err := h.orderUC.PlaceOrder(c.Request().Context(), actor, usecase.PlaceOrderInput{
		CookID:          req.CookID,
		Items:           req.Items,
		DeliveryAddress: req.DeliveryAddress,
		IdempotencyKey:  c.Request().Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, toOrderResponse(order))
}

// ListOrders lists the orders visible to the actor, newest first.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var statuses []string
	var limit int
	if err := echo.QueryParamsBinder(c).Strings("status", &statuses).Int("limit", &limit).BindError(); err != nil {
		return response.BindingError(c, "Invalid order filter")
	}

	input := usecase.ListOrdersInput{Limit: limit}
	for _, s := range statuses {
		input.Statuses = append(input.Statuses, entity.OrderStatus(s))
	}

	orders, err := h.orderUC.ListOrders(c.Request().Context(), actor, input)
	if err != nil {
		return err
	}

	return response.List(c, toOrderResponses(orders))
}

// GetOrder returns one order with party names and the statuses the actor may move it to.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	view, err := h.orderUC.GetOrder(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, toOrderViewResponse(view))
}

// Transition moves an order to another status.
func (h *OrderHandler) Transition(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req TransitionRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid transition input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.orderUC.Transition(c.Request().Context(), actor, usecase.TransitionInput{
		OrderID: c.Param("id"),
		To:      req.To,
		From:    req.From,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, TransitionResponse{
		Order:   toOrderResponse(result.Order),
		Changed: result.Changed,
	})
}

// SetEstimatedDelivery records the cook's delivery estimate.
func (h *OrderHandler) SetEstimatedDelivery(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req EstimatedDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid delivery estimate")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, err := h.orderUC.SetEstimatedDelivery(c.Request().Context(), actor, c.Param("id"), req.EstimatedDeliveryTime)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, toOrderResponse(order))
}

// SendMessage notifies the order's counterparty with a chat message.
func (h *OrderHandler) SendMessage(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req ChatMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid message")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	notification, err := h.notificationUC.NotifyChatMessage(c.Request().Context(), actor, usecase.ChatMessageInput{
		OrderID: c.Param("id"),
		Message: req.Message,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, toNotificationResponse(notification))
}

// actorFrom returns the actor the auth middleware resolved.
func actorFrom(c echo.Context) (*entity.Actor, error) {
	actor, ok := deliverycontext.GetActor(c)
	if !ok {
		return nil, errors.WithStack(domainerrors.ErrUnauthenticated)
	}

	return actor, nil
}
