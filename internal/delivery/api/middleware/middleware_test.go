package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"kitchenline/config"
	deliverycontext "kitchenline/internal/delivery/context"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/infra/auth"
	"kitchenline/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorBody struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = NewErrorMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))).HandleHTTPError

	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestErrorMiddleware_HandleHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{
			name:       "wrapped app error",
			err:        errors.Wrap(domainerrors.ErrOrderNotFound, "load order"),
			wantStatus: http.StatusNotFound,
			wantCode:   "ORDER_NOT_FOUND",
		},
		{
			name:        "validation details are shown",
			err:         domainerrors.ErrValidationFailed.WithDetails("items failed required"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_FAILED",
			wantDetails: true,
		},
		{
			name:       "forbidden hides details",
			err:        domainerrors.ErrUnauthorized.WithDetails("role cook"),
			wantStatus: http.StatusForbidden,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:        "invalid transition",
			err:         errors.WithStack(&domainerrors.InvalidTransitionError{OrderID: "o-1", Current: entity.OrderStatusDelivered, Attempted: entity.OrderStatusCooking}),
			wantStatus:  http.StatusConflict,
			wantCode:    "INVALID_TRANSITION",
			wantDetails: true,
		},
		{
			name:       "echo error",
			err:        echo.NewHTTPError(http.StatusMethodNotAllowed),
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "HTTP_ERROR",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			e.HTTPErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body.Error.Code)
			}
			assert.Equal(t, tt.wantDetails, len(body.Error.Details) > 0)
		})
	}
}

func TestErrorMiddleware_TransitionDetails(t *testing.T) {
	e := newTestEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	e.HTTPErrorHandler(&domainerrors.InvalidTransitionError{OrderID: "o-1", Current: entity.OrderStatusDelivered, Attempted: entity.OrderStatusCooking}, c)

	var details transitionDetails
	require.NoError(t, json.Unmarshal(decodeError(t, rec).Error.Details, &details))
	assert.Equal(t, transitionDetails{OrderID: "o-1", Current: "delivered", Attempted: "cooking"}, details)
}

// stubSession reports a fixed current actor.
type stubSession struct {
	usecase.SessionUsecase

	actor *entity.Actor
}

func (s *stubSession) CurrentActor() (*entity.Actor, error) {
	if s.actor == nil {
		return nil, errors.WithStack(domainerrors.ErrUnauthenticated)
	}

	return s.actor, nil
}

func newTokenService(t *testing.T) service.TokenService {
	t.Helper()

	cfg := &config.Config{}
	cfg.SecretKey.Access = "test_access_secret_key_very_long_for_testing"
	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	return tokens
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tokens := newTokenService(t)
	cook := &entity.Actor{ID: "may", Role: entity.RoleCook}
	mayToken, _, err := tokens.GenerateSessionToken("may", []string{"cook"})
	require.NoError(t, err)
	benToken, _, err := tokens.GenerateSessionToken("ben", []string{"customer"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		actor      *entity.Actor
		wantStatus int
	}{
		{"valid session", "Bearer " + mayToken, cook, http.StatusOK},
		{"missing header", "", cook, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", cook, http.StatusUnauthorized},
		{"signed out gate", "Bearer " + mayToken, nil, http.StatusUnauthorized},
		{"token of another actor", "Bearer " + benToken, cook, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(AuthMiddlewareParams{Tokens: tokens, Session: &stubSession{actor: tt.actor}})
			e := newTestEcho()
			e.GET("/me", func(c echo.Context) error {
				actor, ok := deliverycontext.GetActor(c)
				require.True(t, ok)

				return c.String(http.StatusOK, actor.ID)
			}, m.Authenticate)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "may", rec.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_RequireCapability(t *testing.T) {
	tokens := newTokenService(t)
	m := NewAuthMiddleware(AuthMiddlewareParams{Tokens: tokens})

	tests := []struct {
		name       string
		actor      *entity.Actor
		wantStatus int
	}{
		{"customer may order", &entity.Actor{ID: "ben", Role: entity.RoleCustomer}, http.StatusNoContent},
		{"cook may not order", &entity.Actor{ID: "may", Role: entity.RoleCook}, http.StatusForbidden},
		{"no actor", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/orders", nil), rec)
			if tt.actor != nil {
				deliverycontext.SetActor(c, tt.actor)
			}

			handler := m.RequireCapability(entity.CapPlaceOrder)(func(c echo.Context) error {
				return c.NoContent(http.StatusNoContent)
			})
			if err := handler(c); err != nil {
				e.HTTPErrorHandler(err, c)
			}

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
