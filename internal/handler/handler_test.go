package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/handler"
	"github.com/iliyamo/ai-gen-platform/internal/middleware"
	"github.com/iliyamo/ai-gen-platform/internal/router"
	"github.com/iliyamo/ai-gen-platform/internal/service"
	"github.com/iliyamo/ai-gen-platform/internal/testutil"
)

type server struct {
	env *testutil.Env
	e   *echo.Echo
}

// newServer registers every route the way cmd/server does, with Redis
// disabled so the limiter and cache pass through.
func newServer(t *testing.T) *server {
	t.Helper()
	env := testutil.NewEnv(t)
	e := echo.New()
	limiter := middleware.NewTokenBucket(config.RateLimitConfig{}, nil, nil)
	cache := middleware.NewRedisCache(config.CacheConfig{}, nil, nil)
	maxUpload := env.Cfg.MaxUploadBytes()

	router.RegisterRoutes(e, env.DB)
	router.RegisterAuth(e, handler.NewAuthHandler(env.AccountSvc, nil), env.AccountSvc, limiter)
	router.RegisterCredits(e, handler.NewCreditsHandler(env.Ledger, nil), env.AccountSvc, cache)
	router.RegisterRequests(e, handler.NewRequestHandler(env.RequestSvc, maxUpload, nil), env.AccountSvc)
	router.RegisterAdmin(e, handler.NewAdminHandler(env.RequestSvc, maxUpload, nil), env.AccountSvc)
	router.RegisterSupport(e, handler.NewSupportHandler(env.Support, nil), limiter)
	return &server{env: env, e: e}
}

func (s *server) do(t *testing.T, method, path, token string, body io.Reader, ctype string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if ctype != "" {
		req.Header.Set(echo.HeaderContentType, ctype)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) json(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	return s.do(t, method, path, token, r, echo.MIMEApplicationJSON)
}

type filePart struct {
	name    string
	content []byte
}

func (s *server) multipart(t *testing.T, path, token string, fields map[string]string, file *filePart) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		fw, err := w.CreateFormFile("file", file.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(file.content); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return s.do(t, http.MethodPost, path, token, &buf, w.FormDataContentType())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

type sessionBody struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Account     struct {
		ID      uint64 `json:"id"`
		Email   string `json:"email"`
		Credits int    `json:"credits"`
		Role    string `json:"role"`
		IsAdmin bool   `json:"is_admin"`
	} `json:"account"`
}

func (s *server) register(t *testing.T, email string) sessionBody {
	t.Helper()
	rec := s.json(t, http.MethodPost, "/v1/auth/register", "", map[string]string{"email": email, "password": "password123"})
	expectStatus(t, rec, http.StatusCreated)
	var out sessionBody
	decode(t, rec, &out)
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/healthz", "", nil, ""), http.StatusOK)
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	s := newServer(t)
	reg := s.register(t, "user@example.com")
	if reg.TokenType != "bearer" || reg.AccessToken == "" || reg.Account.Credits != 0 {
		t.Fatalf("unexpected register body: %+v", reg)
	}

	dup := s.json(t, http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "user@example.com", "password": "password123"})
	expectStatus(t, dup, http.StatusConflict)

	bad := s.json(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "nope"})
	expectStatus(t, bad, http.StatusUnauthorized)
	unknown := s.json(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"})
	expectStatus(t, unknown, http.StatusUnauthorized)
	if bad.Body.String() != unknown.Body.String() {
		t.Fatalf("login failures must be indistinguishable: %q vs %q", bad.Body.String(), unknown.Body.String())
	}

	login := s.json(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "password123"})
	expectStatus(t, login, http.StatusOK)
	var sess sessionBody
	decode(t, login, &sess)

	me := s.do(t, http.MethodGet, "/v1/auth/me", sess.AccessToken, nil, "")
	expectStatus(t, me, http.StatusOK)
	var acc struct {
		Email   string `json:"email"`
		Credits int    `json:"credits"`
	}
	decode(t, me, &acc)
	if acc.Email != "user@example.com" || acc.Credits != 0 {
		t.Fatalf("unexpected /me body: %+v", acc)
	}

	expectStatus(t, s.do(t, http.MethodGet, "/v1/auth/me", "", nil, ""), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodGet, "/v1/auth/me", sess.AccessToken+"x", nil, ""), http.StatusUnauthorized)

	status := s.do(t, http.MethodGet, "/v1/auth/admin-status", sess.AccessToken, nil, "")
	expectStatus(t, status, http.StatusOK)
	var st struct {
		IsAdmin bool `json:"is_admin"`
	}
	decode(t, status, &st)
	if st.IsAdmin {
		t.Fatal("regular user reported as admin")
	}
}

func TestAuth_ValidationErrors(t *testing.T) {
	s := newServer(t)
	rec := s.json(t, http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "not-an-email", "password": "password123"})
	expectStatus(t, rec, http.StatusBadRequest)
	var body struct {
		Code string `json:"code"`
	}
	decode(t, rec, &body)
	if body.Code != "validation" {
		t.Fatalf("expected validation code, got %q", body.Code)
	}
	expectStatus(t, s.do(t, http.MethodPost, "/v1/auth/login", "", strings.NewReader("{"), echo.MIMEApplicationJSON), http.StatusBadRequest)
}

func TestAuth_PasswordResetFlow(t *testing.T) {
	s := newServer(t)
	s.register(t, "user@example.com")

	expectStatus(t, s.json(t, http.MethodPost, "/v1/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"}), http.StatusOK)
	expectStatus(t, s.json(t, http.MethodPost, "/v1/auth/forgot-password", "", map[string]string{"email": "user@example.com"}), http.StatusOK)

	sent := s.env.Notifier.Sent(service.NoticePasswordReset)
	if len(sent) != 1 {
		t.Fatalf("expected one reset notice, got %d", len(sent))
	}
	token := sent[0].ResetURL[strings.Index(sent[0].ResetURL, "token=")+len("token="):]

	verify := s.json(t, http.MethodPost, "/v1/auth/verify-reset-token", "", map[string]string{"token": token})
	expectStatus(t, verify, http.StatusOK)
	var v struct {
		Valid bool `json:"valid"`
	}
	decode(t, verify, &v)
	if !v.Valid {
		t.Fatal("fresh reset token reported invalid")
	}

	reset := s.json(t, http.MethodPost, "/v1/auth/reset-password", "", map[string]string{"token": token, "new_password": "brand-new-pw"})
	expectStatus(t, reset, http.StatusOK)
	again := s.json(t, http.MethodPost, "/v1/auth/reset-password", "", map[string]string{"token": token, "new_password": "another-pw"})
	expectStatus(t, again, http.StatusBadRequest)

	login := s.json(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "brand-new-pw"})
	expectStatus(t, login, http.StatusOK)
}

func TestCredits_PackagesAndIdempotentConfirm(t *testing.T) {
	s := newServer(t)
	pk := s.do(t, http.MethodGet, "/v1/credits/packages", "", nil, "")
	expectStatus(t, pk, http.StatusOK)
	var pkgs struct {
		Packages []struct {
			Credits    int   `json:"credits"`
			PriceCents int64 `json:"price_cents"`
		} `json:"packages"`
	}
	decode(t, pk, &pkgs)
	if len(pkgs.Packages) != 3 || pkgs.Packages[2].Credits != 15 || pkgs.Packages[2].PriceCents != 500 {
		t.Fatalf("unexpected packages: %+v", pkgs)
	}

	user := s.register(t, "buyer@example.com")
	expectStatus(t, s.json(t, http.MethodPost, "/v1/credits/checkout", user.AccessToken, map[string]int{"credits": 7}), http.StatusBadRequest)

	co := s.json(t, http.MethodPost, "/v1/credits/checkout", user.AccessToken, map[string]int{"credits": 15})
	expectStatus(t, co, http.StatusOK)
	var checkout struct {
		URL       string `json:"checkout_url"`
		SessionID string `json:"session_id"`
	}
	decode(t, co, &checkout)
	if checkout.URL == "" || checkout.SessionID == "" {
		t.Fatalf("unexpected checkout body: %+v", checkout)
	}

	unpaid := s.json(t, http.MethodPost, "/v1/credits/confirm", user.AccessToken, map[string]string{"session_id": checkout.SessionID})
	expectStatus(t, unpaid, http.StatusBadRequest)

	s.env.Gateway.MarkPaid(checkout.SessionID, 500)
	type confirmBody struct {
		AlreadyProcessed bool `json:"already_processed"`
		CreditsAdded     int  `json:"credits_added"`
		Balance          int  `json:"balance"`
	}
	var first, second confirmBody
	rec := s.json(t, http.MethodPost, "/v1/credits/confirm", user.AccessToken, map[string]string{"session_id": checkout.SessionID})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &first)
	rec = s.json(t, http.MethodPost, "/v1/credits/confirm", user.AccessToken, map[string]string{"session_id": checkout.SessionID})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &second)

	if first.AlreadyProcessed || first.CreditsAdded != 15 || first.Balance != 15 {
		t.Fatalf("unexpected first confirm: %+v", first)
	}
	if !second.AlreadyProcessed || second.CreditsAdded != 0 || second.Balance != 15 {
		t.Fatalf("unexpected second confirm: %+v", second)
	}

	other := s.register(t, "other@example.com")
	expectStatus(t, s.json(t, http.MethodPost, "/v1/credits/confirm", other.AccessToken, map[string]string{"session_id": checkout.SessionID}), http.StatusForbidden)

	hist := s.do(t, http.MethodGet, "/v1/credits/purchases", user.AccessToken, nil, "")
	expectStatus(t, hist, http.StatusOK)
	var purchases struct {
		Purchases []struct {
			SessionID string `json:"session_id"`
		} `json:"purchases"`
	}
	decode(t, hist, &purchases)
	if len(purchases.Purchases) != 1 || purchases.Purchases[0].SessionID != checkout.SessionID {
		t.Fatalf("unexpected purchase history: %+v", purchases)
	}
}

func TestRequests_InsufficientCredit(t *testing.T) {
	s := newServer(t)
	user := s.register(t, "broke@example.com")
	rec := s.multipart(t, "/v1/requests", user.AccessToken, map[string]string{
		"kind": "Text", "model": "gpt", "prompt": "hello", "delivery_email": "broke@example.com",
	}, nil)
	expectStatus(t, rec, http.StatusPaymentRequired)

	list := s.do(t, http.MethodGet, "/v1/requests", user.AccessToken, nil, "")
	expectStatus(t, list, http.StatusOK)
	var body struct {
		Requests []json.RawMessage `json:"requests"`
	}
	decode(t, list, &body)
	if len(body.Requests) != 0 {
		t.Fatalf("no request may be created without credit, got %d", len(body.Requests))
	}
}

func TestRequests_OversizedUpload(t *testing.T) {
	s := newServer(t)
	user := s.register(t, "big@example.com")
	acc, err := s.env.Accounts.GetByID(context.Background(), user.Account.ID)
	if err != nil {
		t.Fatal(err)
	}
	s.env.Fund(t, acc, 1)

	rec := s.multipart(t, "/v1/requests", user.AccessToken, map[string]string{
		"kind": "Image", "model": "sdxl", "prompt": "a cat", "delivery_email": "big@example.com",
	}, &filePart{name: "huge.png", content: make([]byte, s.env.Cfg.MaxUploadBytes()+1)})
	expectStatus(t, rec, http.StatusBadRequest)
	if got := s.env.Reload(t, acc).Credits; got != 1 {
		t.Fatalf("rejected upload must not spend credit, balance %d", got)
	}
}

func TestAdmin_ForbiddenForUsers(t *testing.T) {
	s := newServer(t)
	user := s.register(t, "user@example.com")
	expectStatus(t, s.do(t, http.MethodGet, "/v1/admin/requests", user.AccessToken, nil, ""), http.StatusForbidden)
	expectStatus(t, s.json(t, http.MethodPut, "/v1/admin/requests/1/status", user.AccessToken, map[string]string{"status": "Completed"}), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodGet, "/v1/admin/requests", "", nil, ""), http.StatusUnauthorized)
}

func TestRequests_FullLifecycle(t *testing.T) {
	s := newServer(t)
	admin := s.register(t, testutil.AdminEmail)
	if !admin.Account.IsAdmin {
		t.Fatal("configured admin email must register as admin")
	}
	user := s.register(t, "user@example.com")
	acc, err := s.env.Accounts.GetByID(context.Background(), user.Account.ID)
	if err != nil {
		t.Fatal(err)
	}
	s.env.Fund(t, acc, 2)

	sub := s.multipart(t, "/v1/requests", user.AccessToken, map[string]string{
		"request_type": "Image", "model": "sdxl", "prompt": "a lighthouse", "delivery_email": "deliver@example.com",
	}, &filePart{name: "ref.png", content: []byte("reference image")})
	expectStatus(t, sub, http.StatusCreated)
	var created struct {
		ID     uint64 `json:"id"`
		Kind   string `json:"kind"`
		Status string `json:"status"`
	}
	decode(t, sub, &created)
	if created.Kind != "Image" || created.Status != "Pending" {
		t.Fatalf("unexpected created request: %+v", created)
	}
	if got := s.env.Reload(t, acc).Credits; got != 1 {
		t.Fatalf("expected balance 1 after submit, got %d", got)
	}

	list := s.do(t, http.MethodGet, "/v1/admin/requests", admin.AccessToken, nil, "")
	expectStatus(t, list, http.StatusOK)
	var all struct {
		Requests []struct {
			ID         uint64 `json:"id"`
			OwnerEmail string `json:"owner_email"`
		} `json:"requests"`
	}
	decode(t, list, &all)
	if len(all.Requests) != 1 || all.Requests[0].OwnerEmail != "user@example.com" {
		t.Fatalf("unexpected admin listing: %+v", all)
	}

	path := "/v1/admin/requests/" + itoa(created.ID)
	art := s.do(t, http.MethodGet, path+"/artifact", admin.AccessToken, nil, "")
	expectStatus(t, art, http.StatusOK)
	if art.Body.String() != "reference image" {
		t.Fatalf("unexpected artifact body %q", art.Body.String())
	}

	expectStatus(t, s.json(t, http.MethodPut, path+"/status", admin.AccessToken, map[string]string{"status": "Done"}), http.StatusBadRequest)
	expectStatus(t, s.json(t, http.MethodPut, "/v1/admin/requests/999/status", admin.AccessToken, map[string]string{"status": "Completed"}), http.StatusNotFound)

	expectStatus(t, s.multipart(t, path+"/result", admin.AccessToken, map[string]string{"response": "   "}, nil), http.StatusBadRequest)
	res := s.multipart(t, path+"/result", admin.AccessToken, map[string]string{"response": "Here it is"},
		&filePart{name: "result.png", content: []byte("generated image")})
	expectStatus(t, res, http.StatusOK)
	var done struct {
		Status           string  `json:"status"`
		AdminResponse    *string `json:"admin_response"`
		HasAdminArtifact bool    `json:"has_admin_artifact"`
		CompletedAt      *string `json:"completed_at"`
	}
	decode(t, res, &done)
	if done.Status != "Completed" || done.AdminResponse == nil || *done.AdminResponse != "Here it is" || !done.HasAdminArtifact || done.CompletedAt == nil {
		t.Fatalf("unexpected result body: %+v", done)
	}
	if n := len(s.env.Notifier.Sent(service.NoticeCompletion)); n != 1 {
		t.Fatalf("expected one completion notice, got %d", n)
	}

	dl := s.do(t, http.MethodGet, "/v1/requests/"+itoa(created.ID)+"/result", user.AccessToken, nil, "")
	expectStatus(t, dl, http.StatusOK)
	if dl.Body.String() != "generated image" {
		t.Fatalf("unexpected result download %q", dl.Body.String())
	}
	if cd := dl.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "result.png") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	other := s.register(t, "other@example.com")
	expectStatus(t, s.do(t, http.MethodGet, "/v1/requests/"+itoa(created.ID)+"/result", other.AccessToken, nil, ""), http.StatusNotFound)
}

func TestSupport_Message(t *testing.T) {
	s := newServer(t)
	rec := s.json(t, http.MethodPost, "/v1/support/message", "", map[string]string{
		"email": "visitor@example.com", "message": "The checkout page hangs", "page": "/buy-credits",
	})
	expectStatus(t, rec, http.StatusOK)
	var body struct {
		Sent bool `json:"sent"`
	}
	decode(t, rec, &body)
	if !body.Sent {
		t.Fatal("expected support message to be sent")
	}
	notices := s.env.Notifier.Sent(service.NoticeSupport)
	if len(notices) != 1 || notices[0].To != testutil.AdminEmail {
		t.Fatalf("unexpected support notices: %+v", notices)
	}

	expectStatus(t, s.json(t, http.MethodPost, "/v1/support/message", "", map[string]string{"email": "visitor@example.com"}), http.StatusBadRequest)
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
