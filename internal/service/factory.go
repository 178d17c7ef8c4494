package service

import (
	"time"

	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/domain/audit"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/domain/order"
	"github.com/petalpost/petalpost/internal/domain/payment"
	"github.com/petalpost/petalpost/internal/domain/proration"
	"github.com/petalpost/petalpost/internal/domain/subscription"
	"github.com/petalpost/petalpost/internal/email"
	"github.com/petalpost/petalpost/internal/integration/payfast"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/postgres"
	"github.com/petalpost/petalpost/internal/types"
	webhookPublisher "github.com/petalpost/petalpost/internal/webhook/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Clock  types.Clock

	// Repositories
	SubRepo          subscription.Repository
	InvoiceRepo      invoice.Repository
	SequenceRepo     invoice.SequenceRepository
	SessionRepo      payment.SessionRepository
	NotificationRepo payment.NotificationRepository
	OrderRepo        order.Repository
	AuditRepo        audit.Repository

	// Pricing
	Calculator proration.Calculator

	// Gateway
	Gateway        payfast.Gateway
	SourceVerifier payfast.SourceVerifier

	// Notifications
	Notifier         email.Notifier
	WebhookPublisher webhookPublisher.WebhookPublisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	clock types.Clock,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	sequenceRepo invoice.SequenceRepository,
	sessionRepo payment.SessionRepository,
	notificationRepo payment.NotificationRepository,
	orderRepo order.Repository,
	auditRepo audit.Repository,
	calculator proration.Calculator,
	gateway payfast.Gateway,
	sourceVerifier payfast.SourceVerifier,
	notifier email.Notifier,
	webhookPublisher webhookPublisher.WebhookPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		Clock:            clock,
		SubRepo:          subRepo,
		InvoiceRepo:      invoiceRepo,
		SequenceRepo:     sequenceRepo,
		SessionRepo:      sessionRepo,
		NotificationRepo: notificationRepo,
		OrderRepo:        orderRepo,
		AuditRepo:        auditRepo,
		Calculator:       calculator,
		Gateway:          gateway,
		SourceVerifier:   sourceVerifier,
		Notifier:         notifier,
		WebhookPublisher: webhookPublisher,
	}
}

// now returns the current instant in the business location
func (p ServiceParams) now() time.Time {
	return p.Clock.Now().In(p.Clock.Location())
}

func (p ServiceParams) cutoffRule() types.CutoffRule {
	if p.Config.Billing.CutoffRule == "" {
		return types.CutoffRuleNextMondayOnly
	}
	return p.Config.Billing.CutoffRule
}
