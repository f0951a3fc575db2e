package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/model"
	"github.com/iliyamo/ai-gen-platform/internal/service"
)

type fakeResolver map[string]model.Account

func (f fakeResolver) Resolve(_ context.Context, token string) (model.Account, error) {
	if token == "store-down" {
		return model.Account{}, errors.New("database is closed")
	}
	a, ok := f[token]
	if !ok {
		return model.Account{}, fmt.Errorf("%w: unknown token", service.ErrAuth)
	}
	return a, nil
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	resolver := fakeResolver{
		"user-token":  {ID: 1, Email: "u@example.com", Role: model.RoleUser},
		"admin-token": {ID: 2, Email: "a@example.com", Role: model.RoleAdmin},
	}
	e := echo.New()
	ok := func(c echo.Context) error {
		a, _ := CurrentAccount(c)
		return c.String(http.StatusOK, a.Email)
	}
	e.GET("/me", ok, Authenticate(resolver))
	e.GET("/admin", ok, Authenticate(resolver), RequireRole(model.RoleAdmin))

	if rec := serve(e, http.MethodGet, "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/me", "forged"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/me", "user-token"); rec.Code != http.StatusOK || rec.Body.String() != "u@example.com" {
		t.Fatalf("user: %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(e, http.MethodGet, "/admin", "user-token"); rec.Code != http.StatusForbidden {
		t.Fatalf("user on admin route: expected 403, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/admin", "admin-token"); rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", rec.Code)
	}
}

func TestAuthenticate_ResolverFailureIsNotAnAuthError(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, Authenticate(fakeResolver{}))

	rec := serve(e, http.MethodGet, "/me", "store-down")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("store failure: expected 500, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(e, http.MethodGet, "/me", "expired"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rec.Code)
	}
}

func TestDisabledRedisMiddlewaresPassThrough(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, log),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil, log))
	rec := serve(e, http.MethodGet, "/x", "")
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
		t.Fatalf("expected untouched response, got %d %v", rec.Code, rec.Header())
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.1.2.3")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/auth/login")

	cfg := config.RateLimitConfig{Prefix: "aigen:rl", KeyStrategy: "ip_route"}
	if got := buildRateKey(cfg, c); got != "aigen:rl:ip:10.1.2.3:route:POST /v1/auth/login" {
		t.Fatalf("unexpected key %q", got)
	}
	cfg.KeyStrategy = "user"
	if got := buildRateKey(cfg, c); got != "aigen:rl:user:anon" {
		t.Fatalf("unexpected key %q", got)
	}
	c.Set(accountKey, model.Account{ID: 9})
	if got := buildRateKey(cfg, c); got != "aigen:rl:user:9" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	status, gotHdr, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || gotHdr.Get("Content-Type") != "application/json" || string(body) != `{"a":1}` {
		t.Fatalf("decode mismatch: %v %d %v %q", ok, status, gotHdr, body)
	}
	if _, _, _, ok := decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0}); ok {
		t.Fatal("truncated payload must be rejected")
	}
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))
	if cw.buf.String() != "abcd" || cw.size != 6 || rec.Body.String() != "abcdef" {
		t.Fatalf("captured %q size %d forwarded %q", cw.buf.String(), cw.size, rec.Body.String())
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	if retryAfterSeconds(1) != 1 || retryAfterSeconds(6000) != 6 || retryAfterSeconds(-5) != 0 {
		t.Fatal("unexpected rounding")
	}
}
