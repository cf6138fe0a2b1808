package middleware

import (
	"log/slog"
	"net/http"

	"kitchenline/internal/delivery/api/response"
	deliverycontext "kitchenline/internal/delivery/context"
	domainerrors "kitchenline/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ErrorMiddleware handles errors in the HTTP pipeline
type ErrorMiddleware struct {
	logger *slog.Logger
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(logger *slog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger: logger,
	}
}

// transitionDetails is the body detail of a rejected status change.
type transitionDetails struct {
	OrderID   string `json:"orderId"`
	Current   string `json:"currentStatus"`
	Attempted string `json:"attemptedStatus"`
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	logger := deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger)

	var transitionErr *domainerrors.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		_ = response.Error(c, transitionErr.HTTPCode(), transitionErr.ErrorCode(), transitionErr.Message(), transitionDetails{
			OrderID:   transitionErr.OrderID,
			Current:   string(transitionErr.Current),
			Attempted: string(transitionErr.Attempted),
		})

		return
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPCode() >= http.StatusInternalServerError {
			logger.Error("Request failed",
				slog.String("code", appErr.ErrorCode()),
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
			)
		}
		_ = response.Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), appErr.Details())

		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}

		_ = response.Error(c, httpErr.Code, "HTTP_ERROR", message, nil)

		return
	}

	logger.Error("Unhandled error",
		slog.Any("error", err),
		slog.String("path", c.Request().URL.Path),
		slog.String("method", c.Request().Method),
	)

	_ = response.InternalServerError(c)
}
