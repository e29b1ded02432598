// Package api wires the HTTP process: observability, storage, brokers,
// services, and the route table.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	catalogcache "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/adapters/cache"
	catalogobs "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/adapters/observability"
	catalogpostgres "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/adapters/persistence/postgres"
	catalogports "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/ports"
	ordershttp "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/adapters/http"
	orderspostgres "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/adapters/persistence/postgres"
	ordersapp "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/application"
	paymentshttp "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/adapters/http"
	paymentspostgres "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/adapters/persistence/postgres"
	paymentsapp "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/application"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/platform/mailer"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/platform/migrations"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/platform/notify"
	platformobservability "github.com/maiphun1412/thietbi-dientu-backend/internal/platform/observability"
	platformpostgres "github.com/maiphun1412/thietbi-dientu-backend/internal/platform/postgres"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/shared/auth"
	apperrors "github.com/maiphun1412/thietbi-dientu-backend/internal/shared/errors"
)

// Run boots the shop HTTP API with observability, storage, and brokers
// wired.
func Run(ctx context.Context) error {
	const serviceName = "thietbi-dientu-api"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}

	db, err := platformpostgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer platformpostgres.Close(db)
	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	txManager := platformpostgres.NewTxManager(db)

	// Catalog: postgres behind an optional Redis read-through cache, both
	// behind the observability decorator. The cache fronts the ledger too
	// so stock mutations evict what they touched.
	catalogRepo := catalogpostgres.NewRepository(txManager)
	var productReader catalogports.ProductReader = catalogRepo
	var ledger catalogports.InventoryLedger = catalogRepo
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		productCache := catalogcache.NewProductCache(catalogRepo, catalogRepo, redisClient, cfg.ProductCacheTTL, logger)
		productReader = productCache
		ledger = productCache
		logger.Info("product cache enabled", slog.String("addr", cfg.RedisAddr))
	}
	catalog := catalogobs.New(
		productReader,
		ledger,
		catalogobs.WithLogger(logger),
		catalogobs.WithTracer(instruments.Tracer("internal.catalog")),
		catalogobs.WithMeter(instruments.Meter("internal.catalog")),
	)

	notifier := buildNotifier(db, cfg, logger)

	var mail mailer.Sender
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPSender(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		logger.Info("smtp mailer configured", slog.String("host", cfg.SMTPHost))
	} else {
		logger.Warn("SMTP_HOST not set, mail delivery suppressed")
		mail = &mailer.LogSender{Logf: func(format string, args ...any) {
			logger.Warn(fmt.Sprintf(format, args...))
		}}
	}

	// Payments repo first, then the orders service it feeds, then the
	// payments service that calls back into orders.
	paymentsRepo := paymentspostgres.NewRepository(txManager)
	ordersService := ordersapp.NewService(ordersapp.Deps{
		Tx:          txManager,
		Orders:      orderspostgres.NewOrderRepository(txManager),
		Customers:   orderspostgres.NewCustomerRepository(txManager),
		Addresses:   orderspostgres.NewAddressRepository(txManager),
		Shippers:    orderspostgres.NewShipperRepository(txManager),
		Payments:    paymentsRepo,
		PaymentView: paymentsRepo,
		Products:    catalog,
		Ledger:      catalog,
		Notifier:    notifier,
		Bank:        cfg.Bank,
	})
	paymentsService := paymentsapp.NewService(
		paymentsapp.Config{
			OtpTTL:         cfg.OtpTTL,
			ResendCooldown: cfg.ResendCooldown,
			MaxAttempts:    cfg.OtpMaxAttempts,
			Bank:           cfg.Bank,
		},
		paymentsapp.Deps{
			Tx:       txManager,
			Payments: paymentsRepo,
			Otp:      paymentsRepo,
			Orders:   ordersService,
			Mail:     mail,
			Notifier: notifier,
		},
	)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	baseResponder := apperrors.NewResponder("", logger)
	ordersResponder := apperrors.NewChainedResponder("", logger, ordershttp.ErrorMappers()...)
	paymentsResponder := apperrors.NewChainedResponder("", logger, paymentshttp.ErrorMappers()...)

	authn := auth.Middleware(tokens, baseResponder)
	optional := auth.OptionalMiddleware(tokens)
	requireAdmin := auth.RequireRole(baseResponder, auth.RoleAdmin)
	requireShipper := auth.RequireRole(baseResponder, auth.RoleShipper, auth.RoleAdmin)

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ordershttp.NewHandler(ordersService, ordersResponder).
		Register(router, authn, requireAdmin, requireShipper)
	paymentshttp.NewHandler(paymentsService, paymentsResponder).
		Register(router, authn, optional, requireAdmin)
	registerNotifications(router, notify.NewStore(db), baseResponder, authn, requireAdmin)

	addr := ":" + cfg.Port
	logger.Info("shop API listening", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("shop API server exited", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return nil
}

// buildNotifier fans events out to the database log and, when
// configured, the message broker. Channel failures never surface to the
// request path.
func buildNotifier(db *gorm.DB, cfg Config, logger *slog.Logger) notify.Notifier {
	channels := []notify.Notifier{notify.NewStore(db)}
	if cfg.AMQPURL != "" {
		publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events stay database-only", slog.String("error", err.Error()))
		} else {
			channels = append(channels, publisher)
			logger.Info("rabbitmq publisher enabled", slog.String("exchange", cfg.Exchange))
		}
	}
	return notify.NewFanout(logger, channels...)
}

func registerNotifications(r gin.IRouter, store *notify.Store, responder *apperrors.Responder, authn, requireAdmin gin.HandlerFunc) {
	r.GET("/notifications", authn, requireAdmin, func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		events, err := store.Recent(c.Request.Context(), limit)
		if err != nil {
			responder.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": events})
	})
}
