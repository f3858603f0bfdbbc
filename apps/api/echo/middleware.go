package echoapi

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// tokenKindMiddleware only lets through tokens of the given kind.
func tokenKindMiddleware(kind string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Kind != kind {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// sessionMiddleware checks that the session token was issued for the session in the path.
func sessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := uuid.Parse(ctx.Param("id"))
			if err != nil {
				return errHttpNotFound
			}
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Kind != tokenSession || claims.Subject != id.String() {
				return errHttpForbidden
			}
			ctx.Set(contextSessionIDKey, id)
			return next(ctx)
		}
	}
}
