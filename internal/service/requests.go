package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/model"
	"github.com/iliyamo/ai-gen-platform/internal/repository"
	"github.com/iliyamo/ai-gen-platform/internal/storage"
)

// ArtifactStore keeps uploaded files.  Keys are opaque and relative to the
// store; callers never build filesystem paths themselves.
type ArtifactStore interface {
	Save(name string, r io.Reader) (key string, err error)
	Open(key string) (io.ReadCloser, error)
	Remove(key string) error
}

// Upload is a file received with a request or an admin result.
type Upload struct {
	Name string
	Body io.Reader
}

// SubmitInput carries the fields of a new request.
type SubmitInput struct {
	Kind          string
	Model         string
	Prompt        string
	DeliveryEmail string
	Artifact      *Upload
}

// ResultInput carries what the administrator delivers.  At least one of
// Response or Artifact must be present.
type ResultInput struct {
	Response *string
	Artifact *Upload
}

// RequestService runs the request lifecycle: submission paid with one
// credit, listing, and administrator fulfillment.
type RequestService struct {
	db         *sql.DB
	accounts   *repository.AccountRepo
	requests   *repository.RequestRepo
	ledger     *Ledger
	store      ArtifactStore
	notifier   Notifier
	log        *slog.Logger
	adminEmail string
	now        func() time.Time
}

func NewRequestService(db *sql.DB, adminEmail string, accounts *repository.AccountRepo, requests *repository.RequestRepo,
	ledger *Ledger, store ArtifactStore, n Notifier, log *slog.Logger) *RequestService {
	return &RequestService{
		db:         db,
		accounts:   accounts,
		requests:   requests,
		ledger:     ledger,
		store:      store,
		notifier:   n,
		log:        loggerOrDefault(log),
		adminEmail: adminEmail,
		now:        time.Now,
	}
}

// Submit debits one credit and creates a Pending request in the same
// transaction.  The artifact is stored and the administrator notified
// after commit; neither can undo the submission.
func (s *RequestService) Submit(ctx context.Context, a model.Account, in SubmitInput) (model.Request, error) {
	in.Kind = strings.TrimSpace(in.Kind)
	in.Model = strings.TrimSpace(in.Model)
	in.DeliveryEmail = strings.TrimSpace(in.DeliveryEmail)
	if !model.ValidKind(in.Kind) {
		return model.Request{}, invalid("kind must be one of Text, Image, Code")
	}
	if in.Model == "" || strings.TrimSpace(in.Prompt) == "" {
		return model.Request{}, invalid("model and prompt are required")
	}
	if err := checkEmail(in.DeliveryEmail); err != nil {
		return model.Request{}, invalid("a valid delivery email is required")
	}

	req := model.Request{
		AccountID:     a.ID,
		Kind:          in.Kind,
		Model:         in.Model,
		Prompt:        in.Prompt,
		DeliveryEmail: in.DeliveryEmail,
		Status:        model.StatusPending,
		CreatedAt:     s.now().UTC(),
	}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.ledger.DebitOneTx(ctx, tx, a.ID); err != nil {
			return err
		}
		return s.requests.CreateTx(ctx, tx, &req)
	})
	if err != nil {
		return model.Request{}, err
	}

	var attachment *Attachment
	if in.Artifact != nil && s.store != nil {
		if att, ok := s.storeArtifact(in.Artifact, req.ID); ok {
			if err := s.requests.SetArtifact(ctx, req.ID, att.Name, att.Key); err != nil {
				s.log.Error("attach artifact", "request_id", req.ID, "err", err)
			} else {
				req.ArtifactName, req.ArtifactKey = &att.Name, &att.Key
				attachment = &att
			}
		}
	}

	notify(ctx, s.log, s.notifier, Notice{
		Kind:          NoticeNewRequest,
		To:            s.adminEmail,
		AccountEmail:  a.Email,
		RequestID:     req.ID,
		RequestKind:   req.Kind,
		Model:         req.Model,
		Prompt:        req.Prompt,
		DeliveryEmail: req.DeliveryEmail,
		Attachment:    attachment,
	})
	return req, nil
}

func (s *RequestService) storeArtifact(u *Upload, requestID uint64) (Attachment, bool) {
	key, err := s.store.Save(u.Name, u.Body)
	if err != nil {
		s.log.Error("store artifact", "request_id", requestID, "name", u.Name, "err", err)
		return Attachment{}, false
	}
	return Attachment{Name: u.Name, Key: key}, true
}

// ListForOwner returns a's requests, newest first.
func (s *RequestService) ListForOwner(ctx context.Context, a model.Account) ([]model.Request, error) {
	return s.requests.ListByAccount(ctx, a.ID)
}

// ListAll returns every request with its owner's email, newest first.
func (s *RequestService) ListAll(ctx context.Context, actor model.Account) ([]model.RequestWithOwner, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.requests.ListAllWithOwner(ctx)
}

// SetStatus moves a request to status.  Completed back to Pending is
// allowed and leaves completed_at untouched.
func (s *RequestService) SetStatus(ctx context.Context, actor model.Account, id uint64, status string) (model.Request, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Request{}, err
	}
	status = strings.TrimSpace(status)
	if !model.ValidStatus(status) {
		return model.Request{}, invalid("status must be Pending or Completed")
	}
	var out model.Request
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		out, err = s.requests.UpdateStatusTx(ctx, tx, id, status)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return model.Request{}, fmt.Errorf("%w: request %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Request{}, err
	}
	s.log.Info("request status changed", "request_id", id, "status", status, "actor", actor.Email)
	return out, nil
}

// RecordAdminResult stores the administrator's response and/or artifact,
// completes the request and notifies its owner.
func (s *RequestService) RecordAdminResult(ctx context.Context, actor model.Account, id uint64, in ResultInput) (model.Request, error) {
	if err := requireAdmin(actor); err != nil {
		return model.Request{}, err
	}
	if in.Response != nil && strings.TrimSpace(*in.Response) == "" {
		in.Response = nil
	}
	if in.Response == nil && in.Artifact == nil {
		return model.Request{}, invalid("a response or an artifact is required")
	}
	if _, err := s.requests.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Request{}, fmt.Errorf("%w: request %d", ErrNotFound, id)
		}
		return model.Request{}, err
	}

	res := repository.AdminResult{Response: in.Response, CompletedAt: s.now().UTC()}
	var attachment *Attachment
	if in.Artifact != nil {
		if s.store == nil {
			return model.Request{}, fmt.Errorf("%w: artifact storage is not configured", ErrDependency)
		}
		key, err := s.store.Save(in.Artifact.Name, in.Artifact.Body)
		if errors.Is(err, storage.ErrTooLarge) {
			return model.Request{}, invalid("result artifact exceeds the upload limit")
		}
		if err != nil {
			return model.Request{}, fmt.Errorf("store result artifact: %w", err)
		}
		name := in.Artifact.Name
		res.ArtifactName, res.ArtifactKey = &name, &key
		attachment = &Attachment{Name: name, Key: key}
	}

	var out model.Request
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		out, err = s.requests.RecordResultTx(ctx, tx, id, res)
		return err
	})
	if err != nil && res.ArtifactKey != nil {
		if rerr := s.store.Remove(*res.ArtifactKey); rerr != nil {
			s.log.Error("remove orphaned result artifact", "request_id", id, "key", *res.ArtifactKey, "err", rerr)
		}
	}
	if errors.Is(err, repository.ErrNotFound) {
		return model.Request{}, fmt.Errorf("%w: request %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Request{}, err
	}

	owner, err := s.accounts.GetByID(ctx, out.AccountID)
	if err != nil {
		s.log.Error("load request owner", "request_id", id, "err", err)
		return out, nil
	}
	n := Notice{
		Kind:         NoticeCompletion,
		To:           owner.Email,
		AccountEmail: owner.Email,
		RequestID:    out.ID,
		RequestKind:  out.Kind,
		Prompt:       out.Prompt,
		Attachment:   attachment,
	}
	if out.AdminResponse != nil {
		n.Response = *out.AdminResponse
	}
	notify(ctx, s.log, s.notifier, n)
	return out, nil
}

// Artifact is a stored file ready to be streamed to a client.
type Artifact struct {
	Name string
	Body io.ReadCloser
}

// OpenResult opens the administrator's artifact for the request's owner.
// Requests owned by someone else look the same as missing ones.
func (s *RequestService) OpenResult(ctx context.Context, a model.Account, id uint64) (Artifact, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Artifact{}, err
	}
	if err != nil || req.AccountID != a.ID || req.AdminArtifactKey == nil {
		return Artifact{}, fmt.Errorf("%w: no result artifact for request %d", ErrNotFound, id)
	}
	return s.open(*req.AdminArtifactName, *req.AdminArtifactKey)
}

// OpenSubmitted opens the file a user uploaded with a request.
func (s *RequestService) OpenSubmitted(ctx context.Context, actor model.Account, id uint64) (Artifact, error) {
	if err := requireAdmin(actor); err != nil {
		return Artifact{}, err
	}
	req, err := s.requests.GetByID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Artifact{}, err
	}
	if err != nil || req.ArtifactKey == nil {
		return Artifact{}, fmt.Errorf("%w: no artifact for request %d", ErrNotFound, id)
	}
	return s.open(*req.ArtifactName, *req.ArtifactKey)
}

func (s *RequestService) open(name, key string) (Artifact, error) {
	if s.store == nil {
		return Artifact{}, fmt.Errorf("%w: artifact storage is not configured", ErrDependency)
	}
	body, err := s.store.Open(key)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: artifact %s is missing", ErrNotFound, key)
	}
	return Artifact{Name: name, Body: body}, nil
}

func requireAdmin(actor model.Account) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: administrator only", ErrForbidden)
	}
	return nil
}
