package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// AuthHandler serves registration, login and password reset.
type AuthHandler struct {
	Accounts *service.AccountService
	Log      *slog.Logger
}

func NewAuthHandler(a *service.AccountService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{Accounts: a, Log: orDefault(log)}
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResp struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Account     accountResp `json:"account"`
}

func toSessionResp(s service.Session) sessionResp {
	return sessionResp{
		AccessToken: s.Token.Token,
		TokenType:   "bearer",
		ExpiresAt:   s.Token.Exp,
		Account:     toAccountResp(s.Account),
	}
}

// Register creates an account and returns a session token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Accounts.Register(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toSessionResp(s))
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Accounts.Authenticate(ctx, req.Email, req.Password, c.RealIP())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(s))
}

// Me returns the caller's account with its current balance.
func (h *AuthHandler) Me(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toAccountResp(a))
}

// AdminStatus tells the frontend whether to show the admin dashboard.
func (h *AuthHandler) AdminStatus(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"is_admin": a.IsAdmin(), "email": a.Email})
}

type forgotReq struct {
	Email string `json:"email"`
}

// ForgotPassword always answers the same way so the response does not
// reveal whether the email is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Accounts.ForgotPassword(ctx, req.Email); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "If the email is registered, a reset link has been sent."})
}

type tokenReq struct {
	Token string `json:"token"`
}

// VerifyResetToken lets the reset page check a link before showing the form.
func (h *AuthHandler) VerifyResetToken(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ok, err := h.Accounts.VerifyResetToken(ctx, req.Token)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": ok})
}

type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword sets a new password; the reset token is the credential.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Accounts.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password has been reset."})
}
