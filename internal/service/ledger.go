package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/model"
	"github.com/iliyamo/ai-gen-platform/internal/repository"
)

// errAlreadyProcessed rolls back a crediting transaction that lost the race
// on purchases.session_id.
var errAlreadyProcessed = errors.New("session already processed")

// CreditResult is the outcome of crediting a confirmed payment.
type CreditResult struct {
	AlreadyProcessed bool
	Credited         int
	Balance          int
}

// Ledger owns every change to an account balance.
type Ledger struct {
	db          *sql.DB
	accounts    *repository.AccountRepo
	purchases   *repository.PurchaseRepo
	gateway     PaymentGateway
	tiers       config.CreditTiers
	frontendURL string
	log         *slog.Logger
}

func NewLedger(db *sql.DB, cfg config.Config, tiers config.CreditTiers, accounts *repository.AccountRepo,
	purchases *repository.PurchaseRepo, gateway PaymentGateway, log *slog.Logger) *Ledger {
	return &Ledger{
		db:          db,
		accounts:    accounts,
		purchases:   purchases,
		gateway:     gateway,
		tiers:       tiers,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		log:         loggerOrDefault(log),
	}
}

// Tiers lists the purchasable bundles.
func (l *Ledger) Tiers() config.CreditTiers { return l.tiers }

// DebitOneTx takes one credit inside the caller's transaction.
func (l *Ledger) DebitOneTx(ctx context.Context, tx *sql.Tx, accountID uint64) error {
	err := l.accounts.DebitOneTx(ctx, tx, accountID)
	if errors.Is(err, repository.ErrInsufficientCredit) {
		return fmt.Errorf("%w: at least one credit is required", ErrInsufficientCredit)
	}
	return err
}

// StartCheckout opens a hosted checkout for the tier granting credits.
// Amounts outside the tier table are rejected before the gateway is called.
func (l *Ledger) StartCheckout(ctx context.Context, a model.Account, credits int) (CheckoutSession, error) {
	tier, ok := l.tiers.Lookup(credits)
	if !ok {
		return CheckoutSession{}, invalid("unsupported credit amount %d", credits)
	}
	if l.gateway == nil {
		return CheckoutSession{}, fmt.Errorf("%w: payments are not configured", ErrDependency)
	}
	sess, err := l.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		AccountID:       a.ID,
		AccountEmail:    a.Email,
		Credits:         tier.Credits,
		UnitAmountCents: tier.UnitAmountCents(),
		PriceID:         tier.PriceID,
		SuccessURL:      l.frontendURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:       l.frontendURL + "/buy-credits",
	})
	if err != nil {
		l.log.Error("create checkout session", "account_id", a.ID, "credits", credits, "err", err)
		return CheckoutSession{}, fmt.Errorf("%w: %w", ErrDependency, err)
	}
	return sess, nil
}

// ConfirmPayment asks the gateway about sessionID and credits the caller
// once.  Confirming the same session again reports AlreadyProcessed.
func (l *Ledger) ConfirmPayment(ctx context.Context, a model.Account, sessionID string) (CreditResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return CreditResult{}, invalid("session_id is required")
	}
	if l.gateway == nil {
		return CreditResult{}, fmt.Errorf("%w: payments are not configured", ErrDependency)
	}
	st, err := l.gateway.ConfirmSession(ctx, sessionID)
	if err != nil {
		l.log.Error("confirm checkout session", "account_id", a.ID, "session_id", sessionID, "err", err)
		return CreditResult{}, fmt.Errorf("%w: %w", ErrDependency, err)
	}
	if !st.Paid {
		return CreditResult{}, invalid("payment not completed")
	}
	if st.AccountID != a.ID {
		return CreditResult{}, fmt.Errorf("%w: session belongs to another account", ErrForbidden)
	}
	if st.Credits <= 0 {
		return CreditResult{}, invalid("session carries no credits")
	}
	return l.CreditFromPurchase(ctx, sessionID, st.AccountID, st.Credits, st.AmountPaidCents)
}

// CreditFromPurchase records the purchase for sessionID and adds amount
// credits in one transaction.  The unique session id decides the winner
// when confirmations race; the loser sees AlreadyProcessed.
func (l *Ledger) CreditFromPurchase(ctx context.Context, sessionID string, accountID uint64, amount int, paidCents int64) (CreditResult, error) {
	var res CreditResult
	err := withTx(ctx, l.db, func(tx *sql.Tx) error {
		_, err := l.purchases.GetBySessionTx(ctx, tx, sessionID)
		if err == nil {
			return errAlreadyProcessed
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		p := model.Purchase{
			AccountID:   accountID,
			SessionID:   sessionID,
			Credits:     amount,
			AmountCents: paidCents,
			CreatedAt:   time.Now(),
		}
		if err := l.purchases.CreateTx(ctx, tx, &p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errAlreadyProcessed
			}
			return err
		}
		balance, err := l.accounts.CreditTx(ctx, tx, accountID, amount)
		if err != nil {
			return err
		}
		res = CreditResult{Credited: amount, Balance: balance}
		return nil
	})
	if errors.Is(err, errAlreadyProcessed) {
		a, err := l.accounts.GetByID(ctx, accountID)
		if err != nil {
			return CreditResult{}, err
		}
		return CreditResult{AlreadyProcessed: true, Balance: a.Credits}, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return CreditResult{}, fmt.Errorf("%w: account %d", ErrNotFound, accountID)
	}
	if err != nil {
		return CreditResult{}, err
	}
	l.log.Info("credits purchased", "account_id", accountID, "session_id", sessionID, "credits", amount, "balance", res.Balance)
	return res, nil
}

// Purchases lists the account's confirmed purchases, newest first.
func (l *Ledger) Purchases(ctx context.Context, accountID uint64) ([]model.Purchase, error) {
	return l.purchases.ListByAccount(ctx, accountID)
}
