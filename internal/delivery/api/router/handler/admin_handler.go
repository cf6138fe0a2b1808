package handler

import (
	"log/slog"
	"net/http"

	"kitchenline/internal/delivery/api/response"
	"kitchenline/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AdminHandlerParams holds dependencies for AdminHandler, injected by Fx.
type AdminHandlerParams struct {
	fx.In

	DashboardUC usecase.DashboardUsecase
	ActorUC     usecase.ActorUsecase
	Logger      *slog.Logger
}

// AdminHandler serves the admin dashboard and cook verification.
type AdminHandler struct {
	dashboardUC usecase.DashboardUsecase
	actorUC     usecase.ActorUsecase
	logger      *slog.Logger
}

// NewAdminHandler is the constructor for AdminHandler.
func NewAdminHandler(params AdminHandlerParams) *AdminHandler {
	return &AdminHandler{
		dashboardUC: params.DashboardUC,
		actorUC:     params.ActorUC,
		logger:      params.Logger,
	}
}

// Dashboard returns the latest dashboard, opening its feeds on first use.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	dashboard, err := h.dashboardUC.Snapshot(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	fresh := dashboard.OrdersFresh && dashboard.CustomersFresh && dashboard.CooksFresh

	return response.Snapshot(c, toDashboardResponse(dashboard), fresh)
}

// VerifyActor marks an actor verified.
func (h *AdminHandler) VerifyActor(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	verified, err := h.actorUC.VerifyActor(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, toActorResponse(verified))
}
