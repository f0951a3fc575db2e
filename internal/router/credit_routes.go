package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/handler"
	"github.com/iliyamo/ai-gen-platform/internal/middleware"
)

// RegisterCredits registers the credit tier list and the checkout flow.
// The tier list is public and goes through the response cache; the rest
// requires a session token.
func RegisterCredits(e *echo.Echo, h *handler.CreditsHandler, resolver middleware.AccountResolver, cache echo.MiddlewareFunc) {
	e.GET("/v1/credits/packages", h.Packages, cache)

	g := e.Group("/v1/credits", middleware.Authenticate(resolver))
	g.POST("/checkout", h.Checkout)
	g.POST("/confirm", h.Confirm)
	g.GET("/purchases", h.Purchases)
}
