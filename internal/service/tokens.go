package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/model"
	"github.com/iliyamo/ai-gen-platform/internal/repository"
	"github.com/iliyamo/ai-gen-platform/internal/utils"
)

// TokenService issues session tokens and manages the single-use reset
// token stored on each account.
type TokenService struct {
	secret   string
	ttl      time.Duration
	resetTTL time.Duration
	accounts *repository.AccountRepo
	log      *slog.Logger
	now      func() time.Time
}

func NewTokenService(cfg config.Config, accounts *repository.AccountRepo, log *slog.Logger) *TokenService {
	return &TokenService{
		secret:   cfg.JWTSecret,
		ttl:      cfg.AccessTTL,
		resetTTL: cfg.ResetTokenTTL,
		accounts: accounts,
		log:      loggerOrDefault(log),
		now:      time.Now,
	}
}

// Issue signs a session token for a.
func (s *TokenService) Issue(a model.Account) (utils.SessionToken, error) {
	return utils.NewSessionToken(s.secret, a.Email, s.ttl, s.now())
}

// Validate returns the email carried by raw.  Failures wrap ErrAuth
// together with the specific utils.ErrToken* cause.
func (s *TokenService) Validate(raw string) (string, error) {
	email, err := utils.ParseSessionToken(s.secret, raw, s.now())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return email, nil
}

// CreateResetToken starts a reset for a and returns the raw token.  Any
// token already in flight is overwritten.
func (s *TokenService) CreateResetToken(ctx context.Context, a model.Account) (string, error) {
	raw, err := utils.NewResetToken()
	if err != nil {
		return "", err
	}
	expires := s.now().UTC().Add(s.resetTTL)
	if err := s.accounts.SetResetToken(ctx, a.ID, utils.HashToken(raw), expires); err != nil {
		return "", err
	}
	return raw, nil
}

// VerifyResetToken returns the account holding raw.  An expired token is
// cleared as a side effect so every later lookup fails too.
func (s *TokenService) VerifyResetToken(ctx context.Context, raw string) (model.Account, bool, error) {
	if raw == "" {
		return model.Account{}, false, nil
	}
	a, err := s.accounts.GetByResetTokenHash(ctx, utils.HashToken(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, false, nil
	}
	if err != nil {
		return model.Account{}, false, err
	}
	if a.ResetTokenExpires == nil || !s.now().Before(*a.ResetTokenExpires) {
		if err := s.ClearResetToken(ctx, a); err != nil {
			s.log.Error("clear expired reset token", "account_id", a.ID, "err", err)
		}
		return model.Account{}, false, nil
	}
	return a, true, nil
}

// ClearResetToken drops a's reset token and expiry together.
func (s *TokenService) ClearResetToken(ctx context.Context, a model.Account) error {
	return s.accounts.ClearResetToken(ctx, a.ID)
}
