package middleware

import (
	"strings"

	deliverycontext "kitchenline/internal/delivery/context"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const bearerPrefix = "Bearer "

// AuthMiddlewareParams holds dependencies for AuthMiddleware, injected by Fx.
type AuthMiddlewareParams struct {
	fx.In

	Tokens  service.TokenService
	Session usecase.SessionUsecase
}

// AuthMiddleware admits requests whose bearer token belongs to the actor the
// session gate resolved.
type AuthMiddleware struct {
	tokens  service.TokenService
	session usecase.SessionUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(params AuthMiddlewareParams) *AuthMiddleware {
	return &AuthMiddleware{tokens: params.Tokens, session: params.Session}
}

// Authenticate validates the session token and stores the current actor on the context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, found := strings.CutPrefix(header, bearerPrefix)
		if !found || token == "" {
			return errors.WithStack(domainerrors.ErrUnauthenticated)
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			return errors.WithStack(domainerrors.ErrUnauthenticated)
		}

		// Session state errors (not resolved, signed out) are AppErrors already.
		actor, err := m.session.CurrentActor()
		if err != nil {
			return err
		}
		if claims.Subject != actor.ID {
			return errors.WithStack(domainerrors.ErrUnauthenticated)
		}

		deliverycontext.SetActor(c, actor)

		return next(c)
	}
}

// RequireCapability rejects actors whose role lacks capability.
// It must be used after Authenticate.
func (m *AuthMiddleware) RequireCapability(capability entity.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := deliverycontext.GetActor(c)
			if !ok {
				return errors.WithStack(domainerrors.ErrUnauthenticated)
			}
			if !actor.Role.Can(capability) {
				return errors.WithStack(domainerrors.ErrUnauthorized)
			}

			return next(c)
		}
	}
}
