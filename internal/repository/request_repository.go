package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/model"
)

const requestColumns = `q.id, q.account_id, q.kind, q.model, q.prompt, q.delivery_email,
	q.artifact_name, q.artifact_key, q.status, q.admin_response,
	q.admin_artifact_name, q.admin_artifact_key, q.created_at, q.completed_at`

// RequestRepo provides persistence for AI requests.  Creation always runs
// inside the caller's transaction so it commits together with the credit
// debit.  All timestamps are stored in UTC.
type RequestRepo struct {
	db *sql.DB
}

// NewRequestRepo returns a new RequestRepo bound to the given database.
func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

// CreateTx inserts req within the scope of an existing transaction and
// populates its generated ID.  The caller must commit or roll back.
func (r *RequestRepo) CreateTx(ctx context.Context, tx *sql.Tx, req *model.Request) error {
	const q = `INSERT INTO ai_requests
		(account_id, kind, model, prompt, delivery_email, artifact_name, artifact_key, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		req.AccountID, req.Kind, req.Model, req.Prompt, req.DeliveryEmail,
		nullString(req.ArtifactName), nullString(req.ArtifactKey), req.Status, req.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	return nil
}

// GetByID fetches a request by id.
func (r *RequestRepo) GetByID(ctx context.Context, id uint64) (model.Request, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *RequestRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Request, error) {
	return r.getByID(ctx, tx, id)
}

func (r *RequestRepo) getByID(ctx context.Context, qr queryer, id uint64) (model.Request, error) {
	return scanRequest(qr.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM ai_requests q WHERE q.id = ? LIMIT 1", id))
}

// ListByAccount returns the account's requests, newest first.
func (r *RequestRepo) ListByAccount(ctx context.Context, accountID uint64) ([]model.Request, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM ai_requests q WHERE q.account_id = ? ORDER BY q.created_at DESC, q.id DESC",
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// ListAllWithOwner returns every request joined with its owner's email,
// newest first.
func (r *RequestRepo) ListAllWithOwner(ctx context.Context) ([]model.RequestWithOwner, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+requestColumns+", a.email FROM ai_requests q JOIN accounts a ON a.id = q.account_id ORDER BY q.created_at DESC, q.id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RequestWithOwner{}
	for rows.Next() {
		var item model.RequestWithOwner
		if err := scanRequestInto(rows, &item.Request, &item.OwnerEmail); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// UpdateStatusTx sets the status of an existing request.  The row is read
// first so a missing id yields ErrNotFound regardless of how the driver
// counts unchanged rows.
func (r *RequestRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) (model.Request, error) {
	if _, err := r.getByID(ctx, tx, id); err != nil {
		return model.Request{}, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE ai_requests SET status = ? WHERE id = ?", status, id); err != nil {
		return model.Request{}, err
	}
	return r.getByID(ctx, tx, id)
}

// AdminResult carries what the administrator delivers for a request.
type AdminResult struct {
	Response     *string
	ArtifactName *string
	ArtifactKey  *string
	CompletedAt  time.Time
}

// RecordResultTx stores the administrator's response and artifact, marks
// the request Completed and stamps completed_at.  Fields left nil keep
// their previous value.
func (r *RequestRepo) RecordResultTx(ctx context.Context, tx *sql.Tx, id uint64, res AdminResult) (model.Request, error) {
	if _, err := r.getByID(ctx, tx, id); err != nil {
		return model.Request{}, err
	}
	const q = `UPDATE ai_requests SET
		admin_response = COALESCE(?, admin_response),
		admin_artifact_name = COALESCE(?, admin_artifact_name),
		admin_artifact_key = COALESCE(?, admin_artifact_key),
		status = ?,
		completed_at = ?
		WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q,
		nullString(res.Response), nullString(res.ArtifactName), nullString(res.ArtifactKey),
		model.StatusCompleted, res.CompletedAt.UTC(), id); err != nil {
		return model.Request{}, err
	}
	return r.getByID(ctx, tx, id)
}

// SetArtifact attaches the stored upload to a request after the file has
// been written.
func (r *RequestRepo) SetArtifact(ctx context.Context, id uint64, name, key string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE ai_requests SET artifact_name = ?, artifact_key = ? WHERE id = ?", name, key, id)
	return err
}

// CountByAccount returns how many requests the account owns.
func (r *RequestRepo) CountByAccount(ctx context.Context, accountID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ai_requests WHERE account_id = ?", accountID).Scan(&n)
	return n, err
}

func scanRequest(row rowScanner) (model.Request, error) {
	var req model.Request
	if err := scanRequestInto(row, &req); err != nil {
		return model.Request{}, err
	}
	return req, nil
}

func scanRequestInto(row rowScanner, req *model.Request, extra ...any) error {
	var (
		artifactName, artifactKey, adminResponse sql.NullString
		adminArtifactName, adminArtifactKey      sql.NullString
		completedAt                              sql.NullTime
	)
	dest := []any{
		&req.ID, &req.AccountID, &req.Kind, &req.Model, &req.Prompt, &req.DeliveryEmail,
		&artifactName, &artifactKey, &req.Status, &adminResponse,
		&adminArtifactName, &adminArtifactKey, &req.CreatedAt, &completedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return notFound(err)
	}
	req.ArtifactName = stringPtr(artifactName)
	req.ArtifactKey = stringPtr(artifactKey)
	req.AdminResponse = stringPtr(adminResponse)
	req.AdminArtifactName = stringPtr(adminArtifactName)
	req.AdminArtifactKey = stringPtr(adminArtifactKey)
	req.CreatedAt = req.CreatedAt.UTC()
	req.CompletedAt = timePtr(completedAt)
	return nil
}
