package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/foodcourt/storefront-api/internal/cache"
	"github.com/foodcourt/storefront-api/internal/config"
	"github.com/foodcourt/storefront-api/internal/database"
	"github.com/foodcourt/storefront-api/internal/handlers"
	"github.com/foodcourt/storefront-api/internal/logging"
	"github.com/foodcourt/storefront-api/internal/middleware"
	"github.com/foodcourt/storefront-api/internal/payment"
	"github.com/foodcourt/storefront-api/internal/repository"
	"github.com/foodcourt/storefront-api/internal/routes"
	"github.com/foodcourt/storefront-api/internal/services"
	"github.com/foodcourt/storefront-api/internal/tokens"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdout := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Database
	db, err := database.Open(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// ERROR+ records also go to system_logs
	dbLogHandler := logging.NewDBHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdout, dbLogHandler)))

	done := make(chan struct{})
	logging.StartCleanup(db, cfg.LogRetentionDays, done)

	// Session core
	users := repository.NewUserRepository(db)
	ledger := repository.NewTokenLedger(db)
	issuer := tokens.NewIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	sessions := services.NewSessionService(users, ledger, issuer, cfg.BcryptCost)
	services.NewTokenSweeper(ledger, cfg.TokenSweepInterval).Start(done)

	// Storefront collaborators
	menuCache, err := cache.NewTTLCache(cfg.CatalogCacheTTL, cfg.CatalogCacheMaxKeys)
	if err != nil {
		slog.Error("catalog cache init failed", "error", err)
		os.Exit(1)
	}
	if cfg.PaymentKeyID == "" || cfg.PaymentKeySecret == "" {
		slog.Warn("payment gateway credentials are not set; checkout will fail")
	}
	gateway := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentKeyID, cfg.PaymentKeySecret, cfg.PaymentTimeout)

	catalog := services.NewCatalogService(db, menuCache)
	carts := services.NewCartService(db)
	orders := services.NewOrderService(db, users, gateway, cfg.PaymentCurrency)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Env,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	routes.Setup(app, routes.Deps{
		Config:   cfg,
		Issuer:   issuer,
		Sessions: sessions,
		Users:    users,
		Auth: handlers.NewAuthHandler(sessions, handlers.CookieSettings{
			Domain:   cfg.CookieDomain,
			Secure:   cfg.CookieSecure,
			SameSite: cfg.CookieSameSite,
		}),
		Health:  handlers.NewHealthHandler(db),
		Catalog: handlers.NewCatalogHandler(catalog),
		Cart:    handlers.NewCartHandler(carts),
		Orders:  handlers.NewOrderHandler(orders),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(done)
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := database.Close(db); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}
