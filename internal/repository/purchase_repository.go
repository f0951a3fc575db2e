package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ai-gen-platform/internal/model"
)

const purchaseColumns = "id, account_id, session_id, credits, amount_cents, created_at"

// PurchaseRepo persists confirmed checkout sessions.  The unique key on
// session_id is what makes crediting exactly-once.
type PurchaseRepo struct{ db *sql.DB }

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// GetBySessionTx looks up the purchase recorded for a checkout session.
func (r *PurchaseRepo) GetBySessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (model.Purchase, error) {
	return scanPurchase(tx.QueryRowContext(ctx,
		"SELECT "+purchaseColumns+" FROM purchases WHERE session_id = ? LIMIT 1", sessionID))
}

// CreateTx inserts p inside the caller's transaction.  A second insert for
// the same session id returns ErrDuplicate.
func (r *PurchaseRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Purchase) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO purchases (account_id, session_id, credits, amount_cents, created_at) VALUES (?,?,?,?,?)",
		p.AccountID, p.SessionID, p.Credits, p.AmountCents, p.CreatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// ListByAccount returns the account's purchases, newest first.
func (r *PurchaseRepo) ListByAccount(ctx context.Context, accountID uint64) ([]model.Purchase, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+purchaseColumns+" FROM purchases WHERE account_id = ? ORDER BY created_at DESC, id DESC", accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPurchase(row rowScanner) (model.Purchase, error) {
	var p model.Purchase
	if err := row.Scan(&p.ID, &p.AccountID, &p.SessionID, &p.Credits, &p.AmountCents, &p.CreatedAt); err != nil {
		return model.Purchase{}, notFound(err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
