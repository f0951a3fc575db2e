package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"

	"github.com/iliyamo/ai-gen-platform/internal/config"
	"github.com/iliyamo/ai-gen-platform/internal/database"
	"github.com/iliyamo/ai-gen-platform/internal/handler"
	"github.com/iliyamo/ai-gen-platform/internal/middleware"
	"github.com/iliyamo/ai-gen-platform/internal/payment"
	"github.com/iliyamo/ai-gen-platform/internal/repository"
	"github.com/iliyamo/ai-gen-platform/internal/router"
	"github.com/iliyamo/ai-gen-platform/internal/service"
	"github.com/iliyamo/ai-gen-platform/internal/storage"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	applied, err := database.Migrate(ctx, db, cfg.DBDriver)
	if err != nil {
		return err
	}
	log.Info("database ready", "driver", cfg.DBDriver, "migrations_applied", applied)

	tiers, err := config.LoadCreditTiers(cfg.CreditTiersFile)
	if err != nil {
		return err
	}
	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes())
	if err != nil {
		return err
	}
	notifier, err := newNotifier(cfg, store, log)
	if err != nil {
		return err
	}

	var gateway service.PaymentGateway
	if cfg.StripeSecret != "" {
		g, err := payment.NewStripeGateway(cfg.StripeSecret)
		if err != nil {
			return err
		}
		gateway = g
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, checkout disabled")
	}

	accounts := repository.NewAccountRepo(db)
	requests := repository.NewRequestRepo(db)
	purchases := repository.NewPurchaseRepo(db)

	tokens := service.NewTokenService(cfg, accounts, log)
	accountSvc := service.NewAccountService(cfg, accounts, tokens, notifier, log)
	ledger := service.NewLedger(db, cfg, tiers, accounts, purchases, gateway, log)
	requestSvc := service.NewRequestService(db, cfg.AdminEmail, accounts, requests, ledger, store, notifier, log)
	supportSvc := service.NewSupportService(cfg.AdminEmail, notifier, log)

	if err := accountSvc.EnsureAdmin(ctx); err != nil {
		log.Warn("admin promotion skipped", "email", cfg.AdminEmail, "err", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unreachable, rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency_ms", v.Latency.Milliseconds(), "request_id", v.RequestID}
			if v.Error != nil {
				log.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(strconv.FormatInt(cfg.MaxUploadBytes()>>20+1, 10) + "M"))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(accountSvc, log), accountSvc, limiter)
	router.RegisterCredits(e, handler.NewCreditsHandler(ledger, log), accountSvc, cache)
	router.RegisterRequests(e, handler.NewRequestHandler(requestSvc, cfg.MaxUploadBytes(), log), accountSvc)
	router.RegisterAdmin(e, handler.NewAdminHandler(requestSvc, cfg.MaxUploadBytes(), log), accountSvc)
	router.RegisterSupport(e, handler.NewSupportHandler(supportSvc, log), limiter)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler(e),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "env", cfg.Env, "notify_mode", cfg.NotifyMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
