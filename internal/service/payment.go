package service

import "context"

// CheckoutRequest describes the hosted checkout to create for one tier.
type CheckoutRequest struct {
	AccountID       uint64
	AccountEmail    string
	Credits         int
	UnitAmountCents int64
	PriceID         string
	SuccessURL      string
	CancelURL       string
}

// CheckoutSession is the gateway's answer: where to send the browser.
type CheckoutSession struct {
	ID  string
	URL string
}

// SessionStatus is what the gateway reports for a checkout session.
// AccountID and Credits come back from the metadata set at creation.
type SessionStatus struct {
	Paid            bool
	AccountID       uint64
	Credits         int
	AmountPaidCents int64
}

// PaymentGateway creates and confirms hosted checkout sessions.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	ConfirmSession(ctx context.Context, sessionID string) (SessionStatus, error)
}
