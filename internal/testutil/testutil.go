// Package testutil wires a complete service graph against a throwaway
// SQLite database so tests run the production SQL and migrations.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/database"
	"github.com/iliyamo/ai-gen-platform/internal/model"
	"github.com/iliyamo/ai-gen-platform/internal/repository"
	"github.com/iliyamo/ai-gen-platform/internal/service"
	"github.com/iliyamo/ai-gen-platform/internal/storage"
)

// AdminEmail is the administrator configured by Config.
const AdminEmail = "admin@example.com"

// Config returns settings suitable for tests: minimum bcrypt cost and a
// fixed secret.
func Config(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:           "test",
		Port:          "0",
		DBDriver:      database.DriverSQLite,
		DBPath:        filepath.Join(t.TempDir(), "test.db"),
		JWTSecret:     "test-secret",
		AccessTTL:     30 * time.Minute,
		ResetTokenTTL: time.Hour,
		BcryptCost:    4,
		AdminEmail:    AdminEmail,
		FrontendURL:   "http://frontend.test",
		UploadDir:     filepath.Join(t.TempDir(), "uploads"),
		MaxUploadMB:   1,
		NotifyMode:    "log",
	}
}

// OpenDB opens and migrates the SQLite database named by cfg.
func OpenDB(t *testing.T, cfg config.Config) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(cfg.DBPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Env is a fully wired service graph.
type Env struct {
	Cfg       config.Config
	DB        *sql.DB
	Accounts  *repository.AccountRepo
	Requests  *repository.RequestRepo
	Purchases *repository.PurchaseRepo
	Store     *storage.LocalStore
	Notifier  *FakeNotifier
	Gateway   *FakeGateway

	Tokens     *service.TokenService
	AccountSvc *service.AccountService
	Ledger     *service.Ledger
	RequestSvc *service.RequestService
	Support    *service.SupportService
}

// NewEnv builds an Env backed by a fresh database.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	cfg := Config(t)
	db := OpenDB(t, cfg)
	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	e := &Env{
		Cfg:       cfg,
		DB:        db,
		Accounts:  repository.NewAccountRepo(db),
		Requests:  repository.NewRequestRepo(db),
		Purchases: repository.NewPurchaseRepo(db),
		Store:     store,
		Notifier:  &FakeNotifier{},
		Gateway:   NewFakeGateway(),
	}
	e.Tokens = service.NewTokenService(cfg, e.Accounts, nil)
	e.AccountSvc = service.NewAccountService(cfg, e.Accounts, e.Tokens, e.Notifier, nil)
	e.Ledger = service.NewLedger(db, cfg, config.DefaultCreditTiers(), e.Accounts, e.Purchases, e.Gateway, nil)
	e.RequestSvc = service.NewRequestService(db, cfg.AdminEmail, e.Accounts, e.Requests, e.Ledger, store, e.Notifier, nil)
	e.Support = service.NewSupportService(cfg.AdminEmail, e.Notifier, nil)
	return e
}

// Register creates an account and returns it with its session.
func (e *Env) Register(t *testing.T, email string) service.Session {
	t.Helper()
	s, err := e.AccountSvc.Register(context.Background(), email, "password-"+email)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return s
}

// Fund confirms a paid checkout of credits for a and returns the balance.
func (e *Env) Fund(t *testing.T, a model.Account, credits int) int {
	t.Helper()
	sid := e.Gateway.Paid(a.ID, credits, int64(credits)*50)
	res, err := e.Ledger.ConfirmPayment(context.Background(), a, sid)
	if err != nil {
		t.Fatalf("fund %s: %v", a.Email, err)
	}
	return res.Balance
}

// Reload fetches a fresh copy of a.
func (e *Env) Reload(t *testing.T, a model.Account) model.Account {
	t.Helper()
	got, err := e.Accounts.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("reload account %d: %v", a.ID, err)
	}
	return got
}

// FakeNotifier records every notice.  Setting Err makes Send fail.
type FakeNotifier struct {
	mu   sync.Mutex
	sent []service.Notice
	Err  error
}

func (f *FakeNotifier) Send(_ context.Context, n service.Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, n)
	return nil
}

// Sent returns the notices of the given kind, in order.
func (f *FakeNotifier) Sent(kind string) []service.Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []service.Notice
	for _, n := range f.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// FakeGateway stands in for the payment processor.
type FakeGateway struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]service.SessionStatus
	Created  []service.CheckoutRequest
	Err      error
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{sessions: map[string]service.SessionStatus{}}
}

func (g *FakeGateway) CreateCheckoutSession(_ context.Context, req service.CheckoutRequest) (service.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return service.CheckoutSession{}, g.Err
	}
	g.Created = append(g.Created, req)
	id := g.nextID()
	g.sessions[id] = service.SessionStatus{AccountID: req.AccountID, Credits: req.Credits}
	return service.CheckoutSession{ID: id, URL: "https://pay.test/" + id}, nil
}

func (g *FakeGateway) ConfirmSession(_ context.Context, id string) (service.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return service.SessionStatus{}, g.Err
	}
	st, ok := g.sessions[id]
	if !ok {
		return service.SessionStatus{}, fmt.Errorf("no such session %q", id)
	}
	return st, nil
}

// Paid registers a completed session and returns its id.
func (g *FakeGateway) Paid(accountID uint64, credits int, cents int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID()
	g.sessions[id] = service.SessionStatus{Paid: true, AccountID: accountID, Credits: credits, AmountPaidCents: cents}
	return id
}

// MarkPaid completes a session created through CreateCheckoutSession.
func (g *FakeGateway) MarkPaid(id string, cents int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.sessions[id]
	st.Paid, st.AmountPaidCents = true, cents
	g.sessions[id] = st
}

func (g *FakeGateway) nextID() string {
	g.seq++
	return fmt.Sprintf("cs_test_%d", g.seq)
}
