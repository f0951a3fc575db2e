package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/middleware"
	"github.com/iliyamo/ai-gen-platform/internal/model"
	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// requestTimeout bounds the database work of one handler call.
const requestTimeout = 5 * time.Second

// errorMapping orders the taxonomy from most to least specific.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrValidation, http.StatusBadRequest, "validation"},
	{service.ErrAuth, http.StatusUnauthorized, "auth"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrInsufficientCredit, http.StatusPaymentRequired, "insufficient_credit"},
	{service.ErrConflict, http.StatusConflict, "conflict"},
	{service.ErrDependency, http.StatusBadGateway, "dependency"},
}

// writeError translates a service error into the JSON error body.
// Anything outside the taxonomy is logged and reported as a 500 without
// detail.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, echo.Map{"error": err.Error(), "code": m.code})
		}
	}
	log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "validation"})
}

// caller returns the account stored by middleware.Authenticate.
func caller(c echo.Context) (model.Account, error) {
	a, ok := middleware.CurrentAccount(c)
	if !ok {
		return model.Account{}, service.ErrAuth
	}
	return a, nil
}

func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// streamArtifact sends a stored file as a download.
func streamArtifact(c echo.Context, a service.Artifact) error {
	defer a.Body.Close()
	ctype := mime.TypeByExtension(filepath.Ext(a.Name))
	if ctype == "" {
		ctype = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	return c.Stream(http.StatusOK, ctype, a.Body)
}

type accountResp struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Credits   int       `json:"credits"`
	Role      string    `json:"role"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountResp(a model.Account) accountResp {
	return accountResp{ID: a.ID, Email: a.Email, Credits: a.Credits, Role: a.Role, IsAdmin: a.IsAdmin(), CreatedAt: a.CreatedAt}
}

type requestResp struct {
	ID                uint64     `json:"id"`
	Kind              string     `json:"kind"`
	Model             string     `json:"model"`
	Prompt            string     `json:"prompt"`
	DeliveryEmail     string     `json:"delivery_email"`
	ArtifactName      *string    `json:"artifact_name"`
	Status            string     `json:"status"`
	AdminResponse     *string    `json:"admin_response"`
	AdminArtifactName *string    `json:"admin_artifact_name"`
	HasAdminArtifact  bool       `json:"has_admin_artifact"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	OwnerEmail        string     `json:"owner_email,omitempty"`
}

func toRequestResp(r model.Request) requestResp {
	return requestResp{
		ID:                r.ID,
		Kind:              r.Kind,
		Model:             r.Model,
		Prompt:            r.Prompt,
		DeliveryEmail:     r.DeliveryEmail,
		ArtifactName:      r.ArtifactName,
		Status:            r.Status,
		AdminResponse:     r.AdminResponse,
		AdminArtifactName: r.AdminArtifactName,
		HasAdminArtifact:  r.AdminArtifactKey != nil,
		CreatedAt:         r.CreatedAt,
		CompletedAt:       r.CompletedAt,
	}
}
