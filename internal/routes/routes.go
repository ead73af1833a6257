package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/multisig/internal/auth"
	"github.com/congo-pay/multisig/internal/config"
	"github.com/congo-pay/multisig/internal/events"
	"github.com/congo-pay/multisig/internal/funding"
	"github.com/congo-pay/multisig/internal/identity"
	"github.com/congo-pay/multisig/internal/ledger"
	"github.com/congo-pay/multisig/internal/middleware"
	"github.com/congo-pay/multisig/internal/multisig"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	var (
		ledgerBackend ledger.Ledger
		walletStore   multisig.Store
		identityRepo  identity.Repository
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		walletStore = multisig.NewPostgresStore(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		walletStore = multisig.NewMemoryStore()
		identityRepo = identity.NewMemoryRepository()
	}

	sinks := events.Fanout{events.NewLoggerSink(d.Logger)}
	if d.Cache != nil {
		sinks = append(sinks, events.NewRedisSink(d.Cache, d.Cfg.EventsChannel))
	}

	walletSvc := multisig.NewService(walletStore, multisig.NewLedgerCustodian(ledgerBackend), sinks, d.Logger,
		multisig.WithReservations(d.Cfg.ReservePending))
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL, identityRepo)
	authHandler := auth.NewHandler(identitySvc, authSvc)
	fundingSvc, err := funding.NewService(context.Background(), ledgerBackend, walletSvc)
	if err != nil {
		return err
	}

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identitySvc, d.Logger)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit))

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(authSvc))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterLogoutRoute(protected, authHandler)
	RegisterProfileRoute(protected, identityRepo, walletSvc)
	RegisterFundingRoutes(protected, funding.NewHandler(fundingSvc))
	RegisterMultisigRoutes(protected, multisig.NewHandler(walletSvc))

	return nil
}
