package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/api"
	"github.com/petalpost/petalpost/internal/api/cron"
	v1 "github.com/petalpost/petalpost/internal/api/v1"
	"github.com/petalpost/petalpost/internal/cache"
	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/domain/proration"
	"github.com/petalpost/petalpost/internal/email"
	"github.com/petalpost/petalpost/internal/httpclient"
	"github.com/petalpost/petalpost/internal/integration/payfast"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/metrics"
	"github.com/petalpost/petalpost/internal/pdf"
	"github.com/petalpost/petalpost/internal/postgres"
	pubsubRouter "github.com/petalpost/petalpost/internal/pubsub/router"
	"github.com/petalpost/petalpost/internal/repository"
	"github.com/petalpost/petalpost/internal/s3"
	"github.com/petalpost/petalpost/internal/sentry"
	"github.com/petalpost/petalpost/internal/service"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/petalpost/petalpost/internal/validator"
	"github.com/petalpost/petalpost/internal/webhook"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// @title PetalPost API
// @version 1.0
// @description PetalPost back office: subscriptions, invoices and payments
// @BasePath /v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func init() {
	// Business dates are always taken through the configured clock location
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,
			metrics.NewCollector,

			// Clock
			provideClock,

			// Cache
			provideCache,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewInvoiceRepository,
			repository.NewSequenceRepository,
			repository.NewOrderRepository,
			repository.NewPaymentSessionRepository,
			repository.NewPaymentNotificationRepository,
			repository.NewAuditRepository,

			// Pricing
			proration.NewCalculator,

			// Gateway
			payfast.NewClient,
			provideResolver,
			fx.Annotate(
				payfast.NewHostAllowList,
				fx.As(new(payfast.SourceVerifier)),
			),

			// Notifications
			email.NewSender,
			s3.NewService,
			provideNotifier,

			// PubSub
			pubsubRouter.NewRouter,
		),
		postgres.Module(),
		fx.Decorate(postgres.NewSentryClient),
	)

	// Webhook module (must be initialised before services)
	opts = append(opts, webhook.Module)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewSubscriptionService,
			service.NewInvoiceService,
			service.NewBillingService,
			service.NewPaymentService,
			service.NewReconcilerService,
			service.NewOrderService,
			service.NewAdminService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideClock(cfg *config.Configuration) (types.Clock, error) {
	loc, err := cfg.Billing.Location()
	if err != nil {
		return nil, err
	}
	return types.NewSystemClock(loc), nil
}

// provideCache picks the gateway host cache backend. Redis is checked at
// start so that a bad address fails the boot rather than every lookup.
func provideCache(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) cache.Cache {
	if cfg.Cache.Type != types.CacheTypeRedis {
		return cache.NewInMemoryCache()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Address,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis cache ping %s: %w", cfg.Cache.Redis.Address, err)
			}
			log.Infow("redis cache connected", "address", cfg.Cache.Redis.Address)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return cache.NewRedisCache(client, cfg.Cache.Redis.Prefix, log)
}

func provideResolver() payfast.Resolver {
	return net.DefaultResolver
}

// provideNotifier wires invoice emails. PDF rendering is not configured, so
// invoices go out with a payment link only.
func provideNotifier(
	cfg *config.Configuration,
	sender email.Sender,
	storage s3.Service,
	logger *logger.Logger,
) email.Notifier {
	var generator pdf.Generator
	return email.NewNotifier(email.NotifierParams{
		Config:    cfg,
		Sender:    sender,
		Generator: generator,
		Storage:   storage,
		Logger:    logger,
	})
}

func provideHandlers(
	logger *logger.Logger,
	db *postgres.DB,
	collector *metrics.Collector,
	subscriptionService service.SubscriptionService,
	invoiceService service.InvoiceService,
	billingService service.BillingService,
	paymentService service.PaymentService,
	reconcilerService service.ReconcilerService,
	orderService service.OrderService,
	adminService service.AdminService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(db, logger),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, billingService, invoiceService, logger),
		Invoice:      v1.NewInvoiceHandler(invoiceService, paymentService, logger),
		Order:        v1.NewOrderHandler(orderService, logger),
		Payment:      v1.NewPaymentHandler(paymentService, logger),
		Webhook:      v1.NewWebhookHandler(reconcilerService, collector, logger),
		Admin:        v1.NewAdminHandler(adminService, logger),
		CronBilling:  cron.NewBillingHandler(billingService, collector, logger),
		Metrics:      collector,
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, sentrySvc *sentry.Service) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, sentrySvc)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	webhookService *webhook.WebhookService,
	router *pubsubRouter.Router,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startMessageRouter(lc, router, webhookService, log)
		startAPIServer(lc, r, cfg, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	webhookService *webhook.WebhookService,
	logger *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// handlers must be registered before the router runs
			if err := webhookService.Start(ctx); err != nil {
				return err
			}

			logger.Info("starting message router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping message router")
			if err := webhookService.Stop(); err != nil {
				logger.Errorw("failed to stop webhook service", "error", err)
			}
			return router.Close()
		},
	})
}
