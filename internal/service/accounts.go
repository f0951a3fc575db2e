package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/model"
	"github.com/iliyamo/ai-gen-platform/internal/repository"
	"github.com/iliyamo/ai-gen-platform/internal/utils"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// Session is an authenticated account together with its bearer token.
type Session struct {
	Account model.Account
	Token   utils.SessionToken
}

// AccountService covers registration, login and password reset.
type AccountService struct {
	accounts    *repository.AccountRepo
	tokens      *TokenService
	notifier    Notifier
	log         *slog.Logger
	adminEmail  string
	frontendURL string
	bcryptCost  int
}

func NewAccountService(cfg config.Config, accounts *repository.AccountRepo, tokens *TokenService, n Notifier, log *slog.Logger) *AccountService {
	return &AccountService{
		accounts:    accounts,
		tokens:      tokens,
		notifier:    n,
		log:         loggerOrDefault(log),
		adminEmail:  cfg.AdminEmail,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		bcryptCost:  cfg.BcryptCost,
	}
}

// Register creates an account with a zero balance and signs it in.  The
// email is compared and stored exactly as given.
func (s *AccountService) Register(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if err := checkEmail(email); err != nil {
		return Session{}, err
	}
	if err := checkPassword(password); err != nil {
		return Session{}, err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return Session{}, err
	}
	role := model.RoleUser
	if email == s.adminEmail {
		role = model.RoleAdmin
	}
	a, err := s.accounts.Create(ctx, email, hash, role, time.Now())
	if errors.Is(err, repository.ErrDuplicate) {
		return Session{}, fmt.Errorf("%w: email already registered", ErrConflict)
	}
	if err != nil {
		return Session{}, err
	}
	tok, err := s.tokens.Issue(a)
	if err != nil {
		return Session{}, err
	}
	notify(ctx, s.log, s.notifier, Notice{Kind: NoticeWelcome, To: a.Email, AccountEmail: a.Email})
	return Session{Account: a, Token: tok}, nil
}

// Authenticate signs in with email and password.  An unknown email and a
// wrong password produce the same error.
func (s *AccountService) Authenticate(ctx context.Context, email, password, clientIP string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, invalid("email and password are required")
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		utils.BurnPasswordCheck(password)
		return Session{}, fmt.Errorf("%w: invalid credentials", ErrAuth)
	case err != nil:
		return Session{}, err
	}
	if !utils.VerifyPassword(a.PasswordHash, password) {
		return Session{}, fmt.Errorf("%w: invalid credentials", ErrAuth)
	}
	tok, err := s.tokens.Issue(a)
	if err != nil {
		return Session{}, err
	}
	notify(ctx, s.log, s.notifier, Notice{Kind: NoticeLogin, To: a.Email, AccountEmail: a.Email, ClientIP: clientIP})
	return Session{Account: a, Token: tok}, nil
}

// Resolve validates a bearer token and loads its account.  A token for an
// email that no longer resolves is treated like a bad token.
func (s *AccountService) Resolve(ctx context.Context, raw string) (model.Account, error) {
	email, err := s.tokens.Validate(raw)
	if err != nil {
		return model.Account{}, err
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, fmt.Errorf("%w: unknown subject", ErrAuth)
	}
	return a, err
}

// Get reloads an account by id.
func (s *AccountService) Get(ctx context.Context, id uint64) (model.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, ErrNotFound
	}
	return a, err
}

// ForgotPassword emails a reset link when email belongs to an account.
// The result is the same whether or not it does.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email is required")
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	raw, err := s.tokens.CreateResetToken(ctx, a)
	if err != nil {
		return err
	}
	notify(ctx, s.log, s.notifier, Notice{
		Kind:         NoticePasswordReset,
		To:           a.Email,
		AccountEmail: a.Email,
		ResetURL:     s.frontendURL + "/reset-password?token=" + url.QueryEscape(raw),
	})
	return nil
}

// VerifyResetToken reports whether raw is an active reset token.
func (s *AccountService) VerifyResetToken(ctx context.Context, raw string) (bool, error) {
	_, ok, err := s.tokens.VerifyResetToken(ctx, strings.TrimSpace(raw))
	return ok, err
}

// ResetPassword sets a new password using a reset token.  The token is
// consumed by the same statement that writes the new hash.
func (s *AccountService) ResetPassword(ctx context.Context, raw, password string) error {
	raw = strings.TrimSpace(raw)
	if err := checkPassword(password); err != nil {
		return err
	}
	a, ok, err := s.tokens.VerifyResetToken(ctx, raw)
	if err != nil {
		return err
	}
	if !ok {
		return invalid("invalid or expired reset token")
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	err = withTx(ctx, s.accounts.DB(), func(tx *sql.Tx) error {
		return s.accounts.ResetPasswordTx(ctx, tx, a.ID, utils.HashToken(raw), hash)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return invalid("invalid or expired reset token")
	}
	if err != nil {
		return err
	}
	notify(ctx, s.log, s.notifier, Notice{Kind: NoticePasswordChanged, To: a.Email, AccountEmail: a.Email})
	return nil
}

// EnsureAdmin grants RoleAdmin to the configured admin email if that
// account already exists.  It runs once at startup.
func (s *AccountService) EnsureAdmin(ctx context.Context) error {
	if s.adminEmail == "" {
		return nil
	}
	err := s.accounts.SetRoleByEmail(ctx, s.adminEmail, model.RoleAdmin)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// Promote grants RoleAdmin to email.
func (s *AccountService) Promote(ctx context.Context, email string) error {
	err := s.accounts.SetRoleByEmail(ctx, strings.TrimSpace(email), model.RoleAdmin)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: no account for %s", ErrNotFound, email)
	}
	return err
}

func checkEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return invalid("a valid email is required")
	}
	return nil
}

func checkPassword(p string) error {
	switch {
	case p == "":
		return invalid("password is required")
	case len(p) > maxPasswordBytes:
		return invalid("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}
