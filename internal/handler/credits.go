package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// CreditsHandler serves the tier list, checkout and payment confirmation.
type CreditsHandler struct {
	Ledger *service.Ledger
	Log    *slog.Logger
}

func NewCreditsHandler(l *service.Ledger, log *slog.Logger) *CreditsHandler {
	return &CreditsHandler{Ledger: l, Log: orDefault(log)}
}

type packageResp struct {
	Credits    int     `json:"credits"`
	Price      float64 `json:"price"`
	PriceCents int64   `json:"price_cents"`
}

// Packages lists the purchasable tiers.  The response is the same for
// every caller so it is safe to cache.
func (h *CreditsHandler) Packages(c echo.Context) error {
	tiers := h.Ledger.Tiers()
	out := make([]packageResp, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, packageResp{Credits: t.Credits, Price: t.Price.InexactFloat64(), PriceCents: t.UnitAmountCents()})
	}
	return c.JSON(http.StatusOK, echo.Map{"packages": out})
}

type checkoutReq struct {
	Credits int `json:"credits"`
}

// Checkout opens a hosted checkout and returns its redirect URL.
func (h *CreditsHandler) Checkout(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	sess, err := h.Ledger.StartCheckout(ctx, a, req.Credits)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"checkout_url": sess.URL, "session_id": sess.ID})
}

type confirmReq struct {
	SessionID string `json:"session_id"`
}

// Confirm credits a paid checkout.  Repeating it for the same session is
// harmless and reports already_processed.
func (h *CreditsHandler) Confirm(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	res, err := h.Ledger.ConfirmPayment(ctx, a, req.SessionID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"already_processed": res.AlreadyProcessed,
		"credits_added":     res.Credited,
		"balance":           res.Balance,
	})
}

type purchaseResp struct {
	ID          uint64    `json:"id"`
	SessionID   string    `json:"session_id"`
	Credits     int       `json:"credits"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// Purchases lists the caller's confirmed purchases, newest first.
func (h *CreditsHandler) Purchases(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ps, err := h.Ledger.Purchases(ctx, a.ID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]purchaseResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, purchaseResp{ID: p.ID, SessionID: p.SessionID, Credits: p.Credits, AmountCents: p.AmountCents, CreatedAt: p.CreatedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"purchases": out})
}
