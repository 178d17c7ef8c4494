package api

import (
	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/api/cron"
	v1 "github.com/petalpost/petalpost/internal/api/v1"
	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/metrics"
	"github.com/petalpost/petalpost/internal/rest/middleware"
	"github.com/petalpost/petalpost/internal/sentry"
	"github.com/petalpost/petalpost/internal/types"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Subscription *v1.SubscriptionHandler
	Invoice      *v1.InvoiceHandler
	Order        *v1.OrderHandler
	Payment      *v1.PaymentHandler
	Webhook      *v1.WebhookHandler
	Admin        *v1.AdminHandler
	CronBilling  *cron.BillingHandler
	// Metrics is optional; without it /metrics is not served
	Metrics *metrics.Collector
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, sentrySvc *sentry.Service) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// the gateway source check reads ClientIP, so forwarded headers count
	// only from configured proxies
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Errorw("invalid trusted proxies, trusting none", "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery(), middleware.RequestIDMiddleware)
	if handlers.Metrics != nil {
		router.Use(middleware.MetricsMiddleware(handlers.Metrics))
		router.GET("/metrics", gin.WrapH(handlers.Metrics.Handler()))
	}
	router.Use(middleware.SentryMiddleware(cfg)...)
	router.Use(middleware.ErrorHandler(sentrySvc, logger))

	router.GET("/health", handlers.Health.Health)
	router.GET("/health/ready", handlers.Health.Ready)

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers, cfg, logger)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers, cfg *config.Configuration, logger *logger.Logger) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.Signup)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.POST("/:id/pause", handlers.Subscription.PauseSubscription)
		subscriptions.POST("/:id/resume", handlers.Subscription.ResumeSubscription)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		subscriptions.PUT("/:id/slots", handlers.Subscription.UpdateDeliverySlots)
		subscriptions.POST("/:id/resend", handlers.Subscription.ResendInvoice)
		subscriptions.GET("/:id/invoices", handlers.Subscription.ListInvoices)
	}

	invoices := router.Group("/invoices")
	{
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.GET("/:id/payment-sessions", handlers.Invoice.ListPaymentSessions)
	}

	orders := router.Group("/orders")
	{
		orders.POST("", handlers.Order.CreateOrder)
		orders.GET("/:id", handlers.Order.GetOrder)
	}

	payments := router.Group("/payments")
	{
		payments.POST("/checkout", handlers.Payment.CreateCheckout)
		payments.GET("/sessions/:reference", handlers.Payment.GetSession)
	}

	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/payfast/itn",
			middleware.RateLimitMiddleware(cfg.Server.ITNRateLimit, cfg.Server.ITNBurst, logger),
			handlers.Webhook.HandlePayFastITN,
		)
	}

	permissions := middleware.NewPermissionMiddleware(logger)
	admin := router.Group("/admin",
		middleware.AdminAuthenticateMiddleware(cfg, logger),
		permissions.RequireRole(cfg.Auth.AdminRole),
	)
	{
		admin.PUT("/subscriptions/:id/status", handlers.Admin.OverrideSubscriptionStatus)
		admin.POST("/subscriptions/:id/recurring-charges", handlers.Admin.AddRecurringCharge)
		admin.DELETE("/subscriptions/:id/recurring-charges/:charge_id", handlers.Admin.RemoveRecurringCharge)
		admin.PUT("/subscriptions/:id/plan", handlers.Admin.ReassignPlan)
		admin.POST("/subscriptions/:id/manual-payment", handlers.Admin.ApproveManualPayment)
		admin.PUT("/invoices/:id/status", handlers.Admin.OverrideInvoiceStatus)
		admin.POST("/invoices/:id/charges", handlers.Admin.AddInvoiceCharge)
		admin.DELETE("/invoices/:id/charges/:charge_id", handlers.Admin.RemoveInvoiceCharge)
		admin.GET("/audit", handlers.Admin.ListAuditRecords)
	}

	cronGroup := router.Group("/cron", middleware.CronKeyMiddleware(cfg, logger))
	{
		cronGroup.POST("/billing/run", handlers.CronBilling.RunBilling)
	}
}
