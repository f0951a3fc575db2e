package model

import "time"

// Purchase records a confirmed checkout session that granted credits.  At
// most one row exists per SessionID.
type Purchase struct {
	ID          uint64    // purchases.id
	AccountID   uint64    // purchases.account_id
	SessionID   string    // purchases.session_id (unique)
	Credits     int       // purchases.credits
	AmountCents int64     // purchases.amount_cents
	CreatedAt   time.Time // purchases.created_at
}
