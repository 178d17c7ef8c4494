package repository

import (
	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/domain/audit"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/domain/order"
	"github.com/petalpost/petalpost/internal/domain/payment"
	"github.com/petalpost/petalpost/internal/domain/subscription"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/postgres"
	postgresRepo "github.com/petalpost/petalpost/internal/repository/postgres"
)

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewSequenceRepository(db *postgres.DB, cfg *config.Configuration, logger *logger.Logger) invoice.SequenceRepository {
	return postgresRepo.NewSequenceRepository(db, cfg, logger)
}

func NewOrderRepository(db *postgres.DB, logger *logger.Logger) order.Repository {
	return postgresRepo.NewOrderRepository(db, logger)
}

func NewPaymentSessionRepository(db *postgres.DB, logger *logger.Logger) payment.SessionRepository {
	return postgresRepo.NewPaymentSessionRepository(db, logger)
}

func NewPaymentNotificationRepository(db *postgres.DB, logger *logger.Logger) payment.NotificationRepository {
	return postgresRepo.NewPaymentNotificationRepository(db, logger)
}

func NewAuditRepository(db *postgres.DB, logger *logger.Logger) audit.Repository {
	return postgresRepo.NewAuditRepository(db, logger)
}
