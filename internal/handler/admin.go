package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// AdminHandler serves request moderation.  Routes sit behind
// RequireRole(ADMIN); the service checks the role again.
type AdminHandler struct {
	Requests  *service.RequestService
	MaxUpload int64
	Log       *slog.Logger
}

func NewAdminHandler(r *service.RequestService, maxUpload int64, log *slog.Logger) *AdminHandler {
	return &AdminHandler{Requests: r, MaxUpload: maxUpload, Log: orDefault(log)}
}

// List returns every request with its owner's email.
func (h *AdminHandler) List(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	reqs, err := h.Requests.ListAll(ctx, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]requestResp, 0, len(reqs))
	for _, r := range reqs {
		resp := toRequestResp(r.Request)
		resp.OwnerEmail = r.OwnerEmail
		out = append(out, resp)
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": out})
}

type statusReq struct {
	Status string `json:"status" form:"status"`
}

// SetStatus moves a request between Pending and Completed.
func (h *AdminHandler) SetStatus(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid request id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Requests.SetStatus(ctx, a, id, req.Status)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": out.ID, "status": out.Status})
}

// RecordResult stores the response text and/or result file and completes
// the request.  Fields arrive as a multipart form.
func (h *AdminHandler) RecordResult(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid request id")
	}
	upload, closeUpload, err := formUpload(c, "file", h.MaxUpload)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	defer closeUpload()

	in := service.ResultInput{Artifact: upload}
	if resp := c.FormValue("response"); resp != "" {
		in.Response = &resp
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	out, err := h.Requests.RecordAdminResult(ctx, a, id, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toRequestResp(out))
}

// DownloadArtifact streams the file the user uploaded with a request.
func (h *AdminHandler) DownloadArtifact(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid request id")
	}
	art, err := h.Requests.OpenSubmitted(c.Request().Context(), a, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return streamArtifact(c, art)
}
