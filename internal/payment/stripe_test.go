package payment

import (
	"testing"

	"github.com/stripe/stripe-go/v76"
)

func TestStatusFromSession(t *testing.T) {
	s := &stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   500,
		Metadata:      map[string]string{"account_id": "42", "credits": "15"},
	}
	st, err := statusFromSession(s)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Paid || st.AccountID != 42 || st.Credits != 15 || st.AmountPaidCents != 500 {
		t.Fatalf("unexpected status %+v", st)
	}

	s.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
	if st, _ := statusFromSession(s); st.Paid {
		t.Fatal("unpaid session reported as paid")
	}

	s.Metadata = map[string]string{"credits": "15"}
	if _, err := statusFromSession(s); err == nil {
		t.Fatal("missing account metadata must fail")
	}
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	if _, err := NewStripeGateway(""); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := NewStripeGateway("sk_test_x"); err != nil {
		t.Fatal(err)
	}
}

func TestCreditsLabel(t *testing.T) {
	if creditsLabel(1) != "1 AI credit" || creditsLabel(15) != "15 AI credits" {
		t.Fatal("unexpected label")
	}
}
