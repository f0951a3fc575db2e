package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/model"
)

const accountColumns = "id,email,password_hash,credits,role,reset_token_hash,reset_token_expires,created_at"

// AccountRepo persists accounts: identity, password hash, credit balance,
// role and the single in-flight reset token.
type AccountRepo struct{ db *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// DB exposes the handle so services can open transactions spanning repos.
func (r *AccountRepo) DB() *sql.DB { return r.db }

// Create inserts an account with a zero balance.  The email is stored
// exactly as given; a second account with the same email returns ErrDuplicate.
func (r *AccountRepo) Create(ctx context.Context, email, passwordHash, role string, now time.Time) (model.Account, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO accounts (email, password_hash, credits, role, created_at) VALUES (?,?,0,?,?)",
		email, passwordHash, role, now.UTC())
	if err != nil {
		if isDuplicate(err) {
			return model.Account{}, ErrDuplicate
		}
		return model.Account{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Account{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches an account by exact email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *AccountRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Account, error) {
	return r.getByID(ctx, tx, id)
}

func (r *AccountRepo) getByID(ctx context.Context, q queryer, id uint64) (model.Account, error) {
	return scanAccount(q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id))
}

// DebitOneTx removes one credit.  The balance check and the decrement are
// a single conditional UPDATE, so concurrent debits can never drive the
// balance below zero.
func (r *AccountRepo) DebitOneTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET credits = credits - 1 WHERE id=? AND credits >= 1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientCredit
	}
	return nil
}

// CreditTx adds amount credits and returns the resulting balance.
func (r *AccountRepo) CreditTx(ctx context.Context, tx *sql.Tx, id uint64, amount int) (int, error) {
	if _, err := tx.ExecContext(ctx,
		"UPDATE accounts SET credits = credits + ? WHERE id=?", amount, id); err != nil {
		return 0, err
	}
	var balance int
	err := tx.QueryRowContext(ctx, "SELECT credits FROM accounts WHERE id=?", id).Scan(&balance)
	return balance, notFound(err)
}

// SetResetToken stores the digest and expiry of a new reset token,
// replacing any token already in flight.
func (r *AccountRepo) SetResetToken(ctx context.Context, id uint64, tokenHash string, expires time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET reset_token_hash=?, reset_token_expires=? WHERE id=?",
		tokenHash, expires.UTC(), id)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByResetTokenHash fetches the account holding the given token digest.
func (r *AccountRepo) GetByResetTokenHash(ctx context.Context, tokenHash string) (model.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE reset_token_hash=? LIMIT 1", tokenHash))
}

// ClearResetToken drops the reset token and its expiry together.
func (r *AccountRepo) ClearResetToken(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET reset_token_hash=NULL, reset_token_expires=NULL WHERE id=?", id)
	return err
}

// ResetPasswordTx replaces the password hash and consumes the reset token
// in one statement.  The token digest is part of the predicate, so two
// concurrent resets with the same token cannot both succeed.
func (r *AccountRepo) ResetPasswordTx(ctx context.Context, tx *sql.Tx, id uint64, tokenHash, passwordHash string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET password_hash=?, reset_token_hash=NULL, reset_token_expires=NULL
		 WHERE id=? AND reset_token_hash=?`,
		passwordHash, id, tokenHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRoleByEmail assigns role to the account with the given email.
func (r *AccountRepo) SetRoleByEmail(ctx context.Context, email, role string) error {
	if _, err := r.GetByEmail(ctx, email); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, "UPDATE accounts SET role=? WHERE email=?", role, email)
	return err
}

// AccountSummary is one line of the operator's account listing.
type AccountSummary struct {
	ID            uint64
	Email         string
	Role          string
	Credits       int
	CreatedAt     time.Time
	Requests      int
	Pending       int
	Purchases     int
	PurchasedCent int64
}

// ListSummaries returns every account with request and purchase totals,
// oldest account first.
func (r *AccountRepo) ListSummaries(ctx context.Context) ([]AccountSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.email, a.role, a.credits, a.created_at,
			(SELECT COUNT(*) FROM ai_requests q WHERE q.account_id = a.id),
			(SELECT COUNT(*) FROM ai_requests q WHERE q.account_id = a.id AND q.status = 'Pending'),
			(SELECT COUNT(*) FROM purchases p WHERE p.account_id = a.id),
			(SELECT COALESCE(SUM(p.amount_cents), 0) FROM purchases p WHERE p.account_id = a.id)
		FROM accounts a
		ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountSummary
	for rows.Next() {
		var s AccountSummary
		if err := rows.Scan(&s.ID, &s.Email, &s.Role, &s.Credits, &s.CreatedAt,
			&s.Requests, &s.Pending, &s.Purchases, &s.PurchasedCent); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		a       model.Account
		hash    sql.NullString
		expires sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Credits, &a.Role, &hash, &expires, &a.CreatedAt)
	if err != nil {
		return model.Account{}, notFound(err)
	}
	a.ResetTokenHash = stringPtr(hash)
	a.ResetTokenExpires = timePtr(expires)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
