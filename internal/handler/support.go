package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// SupportHandler accepts help messages from the site widget.
type SupportHandler struct {
	Support *service.SupportService
	Log     *slog.Logger
}

func NewSupportHandler(s *service.SupportService, log *slog.Logger) *SupportHandler {
	return &SupportHandler{Support: s, Log: orDefault(log)}
}

type supportReq struct {
	Email     string `json:"email"`
	Message   string `json:"message"`
	Page      string `json:"page"`
	Timestamp string `json:"timestamp"`
}

// Message forwards a support message to the administrator.
func (h *SupportHandler) Message(c echo.Context) error {
	var req supportReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	sent, err := h.Support.Send(c.Request().Context(), service.SupportMessage{
		Email:     req.Email,
		Message:   req.Message,
		Page:      req.Page,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !sent {
		h.Log.Warn("support message not delivered", "from", req.Email)
	}
	return c.JSON(http.StatusOK, echo.Map{"sent": sent})
}
