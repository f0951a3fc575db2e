package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/model"
	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// AccountResolver turns a bearer token into the account it names.  Token
// and unknown-subject failures wrap service.ErrAuth.
type AccountResolver interface {
	Resolve(ctx context.Context, token string) (model.Account, error)
}

// Authenticate validates the Bearer session token and stores the caller's
// account in the context.  Every token failure returns the same 401 body;
// any other resolver error is a 500.
func Authenticate(r AccountResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "auth"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			a, err := r.Resolve(c.Request().Context(), raw)
			if errors.Is(err, service.ErrAuth) {
				c.Logger().Debugf("bearer rejected: %v", err)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token", "code": "auth"})
			}
			if err != nil {
				c.Logger().Errorf("resolve bearer: %v", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
			}
			c.Set(accountKey, a)
			return next(c)
		}
	}
}
