package service_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/model"
	"github.com/iliyamo/ai-gen-platform/internal/service"
	"github.com/iliyamo/ai-gen-platform/internal/testutil"
)

func TestRegister_ZeroBalanceAndWelcome(t *testing.T) {
	env := testutil.NewEnv(t)
	s := env.Register(t, "A@Example.com")

	if s.Account.Credits != 0 || s.Account.Role != model.RoleUser {
		t.Fatalf("unexpected new account %+v", s.Account)
	}
	if s.Account.Email != "A@Example.com" {
		t.Fatalf("email must be stored as given, got %q", s.Account.Email)
	}
	if s.Token.Token == "" {
		t.Fatal("expected a session token")
	}
	if got := env.Notifier.Sent(service.NoticeWelcome); len(got) != 1 || got[0].To != "A@Example.com" {
		t.Fatalf("expected one welcome notice, got %+v", got)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.Register(t, "dup@example.com")

	_, err := env.AccountSvc.Register(ctx, "dup@example.com", "another")
	if !errors.Is(err, service.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var n int
	if err := env.DB.QueryRow("SELECT COUNT(*) FROM accounts WHERE email = ?", "dup@example.com").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected a single row, found %d", n)
	}

	// Matching is exact, so a different case is a different account.
	if _, err := env.AccountSvc.Register(ctx, "DUP@example.com", "x"); err != nil {
		t.Fatalf("case variant should register: %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	cases := []struct{ email, password string }{
		{"", "pw"},
		{"no-at-sign", "pw"},
		{"a@example.com", ""},
		{"a@example.com", strings.Repeat("x", 73)},
	}
	for _, c := range cases {
		if _, err := env.AccountSvc.Register(ctx, c.email, c.password); !errors.Is(err, service.ErrValidation) {
			t.Errorf("register(%q, len %d): expected ErrValidation, got %v", c.email, len(c.password), err)
		}
	}
}

func TestRegister_AdminEmailGetsRole(t *testing.T) {
	env := testutil.NewEnv(t)
	s := env.Register(t, testutil.AdminEmail)
	if !s.Account.IsAdmin() {
		t.Fatalf("configured admin should be ADMIN, got %q", s.Account.Role)
	}
}

func TestAuthenticate_UniformFailure(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.Register(t, "u@example.com")

	_, errUnknown := env.AccountSvc.Authenticate(ctx, "nobody@example.com", "whatever", "")
	_, errWrong := env.AccountSvc.Authenticate(ctx, "u@example.com", "wrong", "")
	if !errors.Is(errUnknown, service.ErrAuth) || !errors.Is(errWrong, service.ErrAuth) {
		t.Fatalf("expected ErrAuth for both, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("messages differ: %q vs %q", errUnknown, errWrong)
	}

	s, err := env.AccountSvc.Authenticate(ctx, "u@example.com", "password-u@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	got, err := env.AccountSvc.Resolve(ctx, s.Token.Token)
	if err != nil || got.ID != s.Account.ID {
		t.Fatalf("resolve: %+v %v", got, err)
	}
	logins := env.Notifier.Sent(service.NoticeLogin)
	if len(logins) != 1 || logins[0].ClientIP != "10.0.0.1" {
		t.Fatalf("expected one login notice, got %+v", logins)
	}
}

func TestAuthenticate_NotifierFailureIsIgnored(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register(t, "u@example.com")
	env.Notifier.Err = errors.New("smtp down")
	if _, err := env.AccountSvc.Authenticate(context.Background(), "u@example.com", "password-u@example.com", ""); err != nil {
		t.Fatalf("notification failure must not fail login: %v", err)
	}
}

func TestResolve_RejectsBadTokens(t *testing.T) {
	env := testutil.NewEnv(t)
	if _, err := env.AccountSvc.Resolve(context.Background(), "garbage"); !errors.Is(err, service.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func resetTokenFrom(t *testing.T, env *testutil.Env) string {
	t.Helper()
	notices := env.Notifier.Sent(service.NoticePasswordReset)
	if len(notices) == 0 {
		t.Fatal("no reset notice sent")
	}
	u, err := url.Parse(notices[len(notices)-1].ResetURL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(notices[len(notices)-1].ResetURL, "http://frontend.test/reset-password?token=") {
		t.Fatalf("unexpected reset url %q", u)
	}
	return u.Query().Get("token")
}

func TestForgotAndResetPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	s := env.Register(t, "u@example.com")

	if err := env.AccountSvc.ForgotPassword(ctx, "u@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	raw := resetTokenFrom(t, env)

	stored := env.Reload(t, s.Account)
	if stored.ResetTokenHash == nil || stored.ResetTokenExpires == nil {
		t.Fatal("reset token and expiry must be set together")
	}
	if *stored.ResetTokenHash == raw {
		t.Fatal("raw token must not be stored")
	}
	if ok, _ := env.AccountSvc.VerifyResetToken(ctx, raw); !ok {
		t.Fatal("fresh token should verify")
	}

	if err := env.AccountSvc.ResetPassword(ctx, raw, "new-password"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := env.AccountSvc.Authenticate(ctx, "u@example.com", "new-password", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	after := env.Reload(t, s.Account)
	if after.ResetTokenHash != nil || after.ResetTokenExpires != nil {
		t.Fatal("reset token must be consumed")
	}
	if err := env.AccountSvc.ResetPassword(ctx, raw, "third"); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("token must be single use, got %v", err)
	}
	if len(env.Notifier.Sent(service.NoticePasswordChanged)) != 1 {
		t.Fatal("expected a password-changed notice")
	}
}

func TestForgotPassword_UnknownEmailLooksTheSame(t *testing.T) {
	env := testutil.NewEnv(t)
	if err := env.AccountSvc.ForgotPassword(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if len(env.Notifier.Sent(service.NoticePasswordReset)) != 0 {
		t.Fatal("no mail should go out for unknown email")
	}
}

func TestForgotPassword_NewTokenReplacesOld(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.Register(t, "u@example.com")

	_ = env.AccountSvc.ForgotPassword(ctx, "u@example.com")
	first := resetTokenFrom(t, env)
	_ = env.AccountSvc.ForgotPassword(ctx, "u@example.com")
	second := resetTokenFrom(t, env)

	if ok, _ := env.AccountSvc.VerifyResetToken(ctx, first); ok {
		t.Fatal("older token must be replaced")
	}
	if ok, _ := env.AccountSvc.VerifyResetToken(ctx, second); !ok {
		t.Fatal("latest token should verify")
	}
}

func TestVerifyResetToken_ExpiredIsClearedLazily(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	s := env.Register(t, "u@example.com")
	_ = env.AccountSvc.ForgotPassword(ctx, "u@example.com")
	raw := resetTokenFrom(t, env)

	past := time.Now().UTC().Add(-2 * time.Hour)
	if _, err := env.DB.Exec("UPDATE accounts SET reset_token_expires = ? WHERE id = ?", past, s.Account.ID); err != nil {
		t.Fatal(err)
	}

	if ok, err := env.AccountSvc.VerifyResetToken(ctx, raw); ok || err != nil {
		t.Fatalf("expired token accepted: ok=%v err=%v", ok, err)
	}
	after := env.Reload(t, s.Account)
	if after.ResetTokenHash != nil || after.ResetTokenExpires != nil {
		t.Fatal("expired token must be cleared on lookup")
	}
	if err := env.AccountSvc.ResetPassword(ctx, raw, "new-password"); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEnsureAdmin_PromotesExistingAccount(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	if err := env.AccountSvc.EnsureAdmin(ctx); err != nil {
		t.Fatalf("no admin account yet should be fine: %v", err)
	}
	a, err := env.Accounts.Create(ctx, testutil.AdminEmail, "x", model.RoleUser, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := env.AccountSvc.EnsureAdmin(ctx); err != nil {
		t.Fatal(err)
	}
	if !env.Reload(t, a).IsAdmin() {
		t.Fatal("admin email should be promoted")
	}
	if err := env.AccountSvc.Promote(ctx, "ghost@example.com"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
