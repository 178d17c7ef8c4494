package testutil

import (
	"context"
	"time"

	"github.com/petalpost/petalpost/internal/cache"
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
	"github.com/petalpost/petalpost/internal/validator"
	"github.com/stretchr/testify/suite"
)

const (
	// TestPassphrase signs gateway traffic in tests
	TestPassphrase = "test-passphrase"
	// GatewayIP resolves from every configured gateway host
	GatewayIP = "197.97.145.144"
	// TestInvoiceNumberStart is the first number the sequence hands out
	TestInvoiceNumberStart = 1000
)

// BusinessLocation is a fixed-offset stand-in for Africa/Johannesburg so tests
// do not depend on the host's tz database
var BusinessLocation = time.FixedZone("SAST", 2*60*60)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriptionRepo subscription.Repository
	InvoiceRepo      invoice.Repository
	SequenceRepo     invoice.SequenceRepository
	SessionRepo      payment.SessionRepository
	NotificationRepo payment.NotificationRepository
	OrderRepo        order.Repository
	AuditRepo        audit.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx              context.Context
	stores           Stores
	webhookPublisher *InMemoryWebhookPublisher
	db               *MockPostgresClient
	logger           *logger.Logger
	config           *config.Configuration
	clock            *types.FixedClock
	httpClient       *MockHTTPClient
	resolver         *FakeResolver
	emailSender      *MockEmailSender
	gateway          payfast.Gateway
	sourceVerifier   payfast.SourceVerifier
	notifier         email.Notifier
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	// Initialize validator
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Billing.EmailRetryDelay = 0
	cfg.Billing.InvoiceNumberStart = TestInvoiceNumberStart
	cfg.PayFast.Passphrase = TestPassphrase
	cfg.PayFast.NotifyURL = "https://petalpost.example/v1/webhooks/payfast/itn"
	cfg.Email.PaymentLinkBase = "https://petalpost.example/pay"

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.clock = &types.FixedClock{At: time.Date(2024, 10, 15, 9, 0, 0, 0, BusinessLocation)}
	s.setupStores()
	s.setupCollaborators()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	subs := NewInMemorySubscriptionStore()
	invoices := NewInMemoryInvoiceStore()
	sequence := NewInMemorySequenceStore(TestInvoiceNumberStart)
	sessions := NewInMemorySessionStore()
	notifications := NewInMemoryNotificationStore()
	orders := NewInMemoryOrderStore()
	audits := NewInMemoryAuditStore()

	s.stores = Stores{
		SubscriptionRepo: subs,
		InvoiceRepo:      invoices,
		SequenceRepo:     sequence,
		SessionRepo:      sessions,
		NotificationRepo: notifications,
		OrderRepo:        orders,
		AuditRepo:        audits,
	}

	s.db = NewMockPostgresClient(s.logger, subs, invoices, sequence, sessions, notifications, orders, audits)
}

func (s *BaseServiceTestSuite) setupCollaborators() {
	s.httpClient = NewMockHTTPClient()
	s.httpClient.RegisterResponse("/eng/query/validate", MockResponse{
		StatusCode: 200,
		Body:       []byte("VALID"),
	})

	addrs := make(map[string][]string, len(s.config.PayFast.ValidHosts))
	for _, host := range s.config.PayFast.ValidHosts {
		addrs[host] = []string{GatewayIP}
	}
	s.resolver = NewFakeResolver(addrs)

	s.gateway = payfast.NewClient(s.config, s.httpClient, s.logger)
	s.sourceVerifier = payfast.NewHostAllowList(s.config, s.resolver, cache.NewInMemoryCache(), s.clock, s.logger)

	s.emailSender = NewMockEmailSender()
	s.notifier = email.NewNotifier(email.NotifierParams{
		Config: s.config,
		Sender: s.emailSender,
		Logger: s.logger,
	})
	s.webhookPublisher = NewInMemoryWebhookPublisher()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.SequenceRepo.(*InMemorySequenceStore).Clear()
	s.stores.SessionRepo.(*InMemorySessionStore).Clear()
	s.stores.NotificationRepo.(*InMemoryNotificationStore).Clear()
	s.stores.OrderRepo.(*InMemoryOrderStore).Clear()
	s.stores.AuditRepo.(*InMemoryAuditStore).Clear()
	s.emailSender.Clear()
	s.webhookPublisher.Clear()
	s.httpClient.Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetWebhookPublisher returns the test webhook publisher
func (s *BaseServiceTestSuite) GetWebhookPublisher() *InMemoryWebhookPublisher {
	return s.webhookPublisher
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetClock returns the fixed test clock
func (s *BaseServiceTestSuite) GetClock() *types.FixedClock {
	return s.clock
}

// SetNow moves the test clock
func (s *BaseServiceTestSuite) SetNow(t time.Time) {
	s.clock.At = t
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.clock.At
}

func (s *BaseServiceTestSuite) GetCalculator() proration.Calculator {
	return proration.NewCalculator()
}

func (s *BaseServiceTestSuite) GetHTTPClient() *MockHTTPClient {
	return s.httpClient
}

func (s *BaseServiceTestSuite) GetResolver() *FakeResolver {
	return s.resolver
}

func (s *BaseServiceTestSuite) GetGateway() payfast.Gateway {
	return s.gateway
}

func (s *BaseServiceTestSuite) GetSourceVerifier() payfast.SourceVerifier {
	return s.sourceVerifier
}

func (s *BaseServiceTestSuite) GetEmailSender() *MockEmailSender {
	return s.emailSender
}

func (s *BaseServiceTestSuite) GetNotifier() email.Notifier {
	return s.notifier
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
