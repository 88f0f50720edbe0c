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

	"github.com/congo-pay/walletconnector/internal/chain"
	"github.com/congo-pay/walletconnector/internal/config"
	"github.com/congo-pay/walletconnector/internal/journal"
	"github.com/congo-pay/walletconnector/internal/middleware"
	"github.com/congo-pay/walletconnector/internal/notification"
	"github.com/congo-pay/walletconnector/internal/recipient"
	"github.com/congo-pay/walletconnector/internal/transfer"
	"github.com/congo-pay/walletconnector/internal/wallet"
)

// Backend is the record service: it owns the recipient and stores transfers.
type Backend interface {
	recipient.Source
	transfer.RecordStore
}

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	Chain chain.Reader
	// Provider is nil when no wallet is configured.
	Provider wallet.Provider
	Backend  Backend
	Oracle   transfer.PriceOracle
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var journalBackend journal.Journal
	if d.DB != nil {
		pg := journal.NewPostgresJournal(d.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := pg.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return err
		}
		journalBackend = pg
	} else {
		journalBackend = journal.NewInMemory()
	}

	manager := wallet.NewManager(d.Provider, d.Chain, d.Logger)
	resolver := recipient.NewResolver(d.Backend, d.Logger)
	orchestrator, err := transfer.NewOrchestrator(transfer.Config{
		GasLimit:            d.Cfg.GasLimit,
		FiatDecimals:        d.Cfg.FiatDecimals,
		PriceAsset:          d.Cfg.PriceAsset,
		ConfirmationTimeout: d.Cfg.ConfirmationTimeout,
	}, transfer.Deps{
		Wallet:    manager,
		Recipient: resolver,
		Chain:     d.Chain,
		Oracle:    d.Oracle,
		Backend:   d.Backend,
		Journal:   journalBackend,
		Notifier:  notification.NewLoggerNotifier(d.Logger),
		Logger:    d.Logger,
	})
	if err != nil {
		return err
	}

	// Fetch the recipient up front. If that fails the first transfer fetches it.
	ctx, cancel := context.WithTimeout(context.Background(), d.Cfg.HTTPTimeout)
	if _, err := resolver.Resolve(ctx); err != nil {
		d.Logger.Warn("recipient not resolved at startup", "error", err)
	}
	cancel()

	if !manager.Available() {
		d.Logger.Warn("no wallet provider configured, transfers are disabled")
	}

	api := app.Group("/api/v1")
	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	connectLimiter := middleware.RateLimit(d.Cache, "connect", d.Cfg.SubmitRateLimit, d.Logger)
	submitLimiter := middleware.RateLimit(d.Cache, "submit", d.Cfg.SubmitRateLimit, d.Logger)
	RegisterSessionRoutes(api, wallet.NewHandler(manager), connectLimiter)
	RegisterRecipientRoutes(api, recipient.NewHandler(resolver))
	RegisterTransferRoutes(api, transfer.NewHandler(orchestrator, journalBackend), submitLimiter)

	return nil
}
