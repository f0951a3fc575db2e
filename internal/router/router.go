package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/handler"
	"github.com/iliyamo/ai-gen-platform/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the authentication routes.  Unauthenticated
// operations are rate limited by limiter; /me and /admin-status require a
// session token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, resolver middleware.AccountResolver, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	g.POST("/forgot-password", a.ForgotPassword, limiter)
	g.POST("/verify-reset-token", a.VerifyResetToken, limiter)
	g.POST("/reset-password", a.ResetPassword, limiter)

	session := g.Group("", middleware.Authenticate(resolver))
	session.GET("/me", a.Me)
	session.GET("/admin-status", a.AdminStatus)
}

// RegisterSupport registers the public support widget endpoint.
func RegisterSupport(e *echo.Echo, s *handler.SupportHandler, limiter echo.MiddlewareFunc) {
	e.POST("/v1/support/message", s.Message, limiter)
}
