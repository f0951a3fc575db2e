package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// RequestHandler serves a user's own requests.
type RequestHandler struct {
	Requests  *service.RequestService
	MaxUpload int64
	Log       *slog.Logger
}

func NewRequestHandler(r *service.RequestService, maxUpload int64, log *slog.Logger) *RequestHandler {
	return &RequestHandler{Requests: r, MaxUpload: maxUpload, Log: orDefault(log)}
}

// Submit spends one credit on a new request.  Fields arrive as a
// multipart form with an optional "file".
func (h *RequestHandler) Submit(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	kind := c.FormValue("kind")
	if kind == "" {
		kind = c.FormValue("request_type")
	}
	upload, closeUpload, err := formUpload(c, "file", h.MaxUpload)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	defer closeUpload()

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	req, err := h.Requests.Submit(ctx, a, service.SubmitInput{
		Kind:          kind,
		Model:         c.FormValue("model"),
		Prompt:        c.FormValue("prompt"),
		DeliveryEmail: c.FormValue("delivery_email"),
		Artifact:      upload,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toRequestResp(req))
}

// List returns the caller's requests, newest first.
func (h *RequestHandler) List(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	reqs, err := h.Requests.ListForOwner(ctx, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]requestResp, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toRequestResp(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": out})
}

// DownloadResult streams the administrator's result file to the owner.
func (h *RequestHandler) DownloadResult(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid request id")
	}
	art, err := h.Requests.OpenResult(c.Request().Context(), a, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return streamArtifact(c, art)
}
