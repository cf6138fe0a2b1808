package handler

import (
	"io"
	"log/slog"
	"net/http"

	"kitchenline/internal/delivery/api/response"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// ProfileHandlerParams holds dependencies for ProfileHandler, injected by Fx.
type ProfileHandlerParams struct {
	fx.In

	ActorUC usecase.ActorUsecase
	MediaUC usecase.MediaUsecase
	Logger  *slog.Logger
}

// ProfileHandler serves the signed-in actor's own record and uploads.
type ProfileHandler struct {
	actorUC usecase.ActorUsecase
	mediaUC usecase.MediaUsecase
	logger  *slog.Logger
}

// NewProfileHandler is the constructor for ProfileHandler.
func NewProfileHandler(params ProfileHandlerParams) *ProfileHandler {
	return &ProfileHandler{
		actorUC: params.ActorUC,
		mediaUC: params.MediaUC,
		logger:  params.Logger,
	}
}

// UpdateProfileRequest changes only the fields that are present.
type UpdateProfileRequest struct {
	DisplayName        *string `json:"displayName"`
	Phone              *string `json:"phone"`
	Address            *string `json:"address"`
	PhotoURL           *string `json:"photoUrl"`
	Bio                *string `json:"bio"`
	DeliveryFee        *int64  `json:"deliveryFee"`
	OnboardingComplete *bool   `json:"onboardingComplete"`
}

// PushTokenRequest registers a device for push messages.
type PushTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// UploadResponse locates an uploaded file.
type UploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// GetProfile returns the actor's stored record.
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	stored, err := h.actorUC.GetProfile(c.Request().Context(), actor)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, toActorResponse(stored))
}

// UpdateProfile applies a partial profile update.
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid profile input")
	}

	updated, err := h.actorUC.UpdateProfile(c.Request().Context(), actor, usecase.UpdateProfileInput(req))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, toActorResponse(updated))
}

// AddPushToken registers a push token for the actor's device.
func (h *ProfileHandler) AddPushToken(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req PushTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid push token")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.actorUC.AddPushToken(c.Request().Context(), actor, req.Token); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Upload stores a multipart "file" of the given "kind" in blob storage.
func (h *ProfileHandler) Upload(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BindingError(c, "A multipart file field named file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return errors.Wrap(err, "failed to open upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return errors.Wrap(domainerrors.ErrValidationFailed.WithDetails("unreadable upload"), err.Error())
	}

	out, err := h.mediaUC.Upload(c.Request().Context(), actor, usecase.UploadInput{
		Kind:        c.FormValue("kind"),
		ContentType: fileHeader.Header.Get(echo.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, UploadResponse{Path: out.Path, URL: out.URL})
}
