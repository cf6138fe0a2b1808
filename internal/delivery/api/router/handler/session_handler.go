package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"kitchenline/config"
	"kitchenline/internal/delivery/api/response"
	"kitchenline/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// SessionHandlerParams holds dependencies for SessionHandler, injected by Fx.
type SessionHandlerParams struct {
	fx.In

	Config    *config.Config
	SessionUC usecase.SessionUsecase
	Logger    *slog.Logger
}

// SessionHandler drives the session gate.
type SessionHandler struct {
	sessionUC usecase.SessionUsecase
	wait      time.Duration
	logger    *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler.
func NewSessionHandler(params SessionHandlerParams) *SessionHandler {
	return &SessionHandler{
		sessionUC: params.SessionUC,
		wait:      params.Config.App.SessionWaitTimeout,
		logger:    params.Logger,
	}
}

// LoginRequest represents the request body for signing in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest represents the request body for creating an account.
type SignupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

// Login signs in and answers with the resolved session.
func (h *SessionHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.sessionUC.Login(ctx, usecase.LoginInput{Email: req.Email, Password: req.Password}); err != nil {
		return err
	}

	return h.respondResolved(c)
}

// Signup creates an account holding this application's role and signs it in.
func (h *SessionHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid signup input")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.sessionUC.Signup(c.Request().Context(), usecase.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		Address:     req.Address,
	})
	if err != nil {
		return err
	}

	return h.respondResolved(c)
}

// Logout ends the session.
func (h *SessionHandler) Logout(c echo.Context) error {
	if err := h.sessionUC.Logout(c.Request().Context()); err != nil {
		return err
	}

	return h.respondResolved(c)
}

// State returns the gate state. With ?wait=true it blocks until the gate is resolved.
func (h *SessionHandler) State(c echo.Context) error {
	var wait bool
	if err := echo.QueryParamsBinder(c).Bool("wait", &wait).BindError(); err != nil {
		return response.BindingError(c, "wait must be a boolean")
	}
	if !wait {
		return response.Success(c, http.StatusOK, toSessionResponse(h.sessionUC.State()))
	}

	return h.respondResolved(c)
}

func (h *SessionHandler) respondResolved(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.wait)
	defer cancel()

	state, err := h.sessionUC.WaitResolved(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toSessionResponse(state))
}
