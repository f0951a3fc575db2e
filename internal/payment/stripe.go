// Package payment adapts Stripe Checkout to service.PaymentGateway.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// Metadata keys written at session creation and read back on confirmation.
const (
	metaAccountID = "account_id"
	metaCredits   = "credits"
)

// StripeGateway creates and confirms Stripe Checkout sessions.
type StripeGateway struct {
	client session.Client
}

var _ service.PaymentGateway = (*StripeGateway)(nil)

// NewStripeGateway returns a gateway using secretKey.  An empty key is a
// configuration error.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	return &StripeGateway{client: session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}}, nil
}

// CreateCheckoutSession opens a one-off payment for a single tier.  A tier
// with a configured price id uses it; otherwise the amount is sent inline.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req service.CheckoutRequest) (service.CheckoutSession, error) {
	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if req.PriceID != "" {
		item.Price = stripe.String(req.PriceID)
	} else {
		item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyUSD)),
			UnitAmount: stripe.Int64(req.UnitAmountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(creditsLabel(req.Credits)),
			},
		}
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{item},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.AccountEmail != "" {
		params.CustomerEmail = stripe.String(req.AccountEmail)
	}
	params.Context = ctx
	params.AddMetadata(metaAccountID, strconv.FormatUint(req.AccountID, 10))
	params.AddMetadata(metaCredits, strconv.Itoa(req.Credits))

	s, err := g.client.New(params)
	if err != nil {
		return service.CheckoutSession{}, fmt.Errorf("stripe: create session: %w", err)
	}
	return service.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ConfirmSession retrieves a session and decodes the metadata written by
// CreateCheckoutSession.
func (g *StripeGateway) ConfirmSession(ctx context.Context, sessionID string) (service.SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.client.Get(sessionID, params)
	if err != nil {
		return service.SessionStatus{}, fmt.Errorf("stripe: get session: %w", err)
	}
	return statusFromSession(s)
}

func statusFromSession(s *stripe.CheckoutSession) (service.SessionStatus, error) {
	st := service.SessionStatus{
		Paid:            s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountPaidCents: s.AmountTotal,
	}
	var err error
	if st.AccountID, err = strconv.ParseUint(s.Metadata[metaAccountID], 10, 64); err != nil {
		return service.SessionStatus{}, fmt.Errorf("stripe: session %s: bad %s metadata", s.ID, metaAccountID)
	}
	if st.Credits, err = strconv.Atoi(s.Metadata[metaCredits]); err != nil {
		return service.SessionStatus{}, fmt.Errorf("stripe: session %s: bad %s metadata", s.ID, metaCredits)
	}
	return st, nil
}

func creditsLabel(n int) string {
	if n == 1 {
		return "1 AI credit"
	}
	return fmt.Sprintf("%d AI credits", n)
}
