package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/handler"
	"github.com/iliyamo/ai-gen-platform/internal/middleware"
	"github.com/iliyamo/ai-gen-platform/internal/model"
)

// RegisterRequests registers the user-facing request endpoints.  Any
// authenticated account may submit and list its own requests.
func RegisterRequests(e *echo.Echo, h *handler.RequestHandler, resolver middleware.AccountResolver) {
	g := e.Group("/v1/requests", middleware.Authenticate(resolver))
	g.POST("", h.Submit)
	g.GET("", h.List)
	g.GET("/:id/result", h.DownloadResult)
}

// RegisterAdmin registers the moderation endpoints under /v1/admin.  All
// routes require a session token and the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, resolver middleware.AccountResolver) {
	g := e.Group(
		"/v1/admin",
		middleware.Authenticate(resolver),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/requests", h.List)
	g.PUT("/requests/:id/status", h.SetStatus)
	g.POST("/requests/:id/status", h.SetStatus)
	g.POST("/requests/:id/result", h.RecordResult)
	g.GET("/requests/:id/artifact", h.DownloadArtifact)
}
