package types

import (
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/samber/lo"
)

// AuditAction names a privileged mutation
type AuditAction string

const (
	AuditActionSubscriptionStatusOverride AuditAction = "subscription.status_override"
	AuditActionInvoiceStatusOverride      AuditAction = "invoice.status_override"
	AuditActionInvoiceChargeAdded         AuditAction = "invoice.charge_added"
	AuditActionInvoiceChargeRemoved       AuditAction = "invoice.charge_removed"
	AuditActionRecurringChargeAdded       AuditAction = "subscription.recurring_charge_added"
	AuditActionRecurringChargeRemoved     AuditAction = "subscription.recurring_charge_removed"
	AuditActionPlanReassigned             AuditAction = "subscription.plan_reassigned"
	AuditActionManualPaymentApproved      AuditAction = "subscription.manual_payment_approved"
)

// AuditEntityType names the document an audit record describes
type AuditEntityType string

const (
	AuditEntitySubscription AuditEntityType = "subscription"
	AuditEntityInvoice      AuditEntityType = "invoice"
)

func (t AuditEntityType) Validate() error {
	allowed := []AuditEntityType{
		AuditEntitySubscription,
		AuditEntityInvoice,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid audit entity type").
			WithHint("Please provide a valid entity type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SchedulerMode is what the daily billing run decided to do
type SchedulerMode string

const (
	SchedulerModeDay1Fallback SchedulerMode = "day1_fallback"
	SchedulerModePrebill      SchedulerMode = "prebill"
	SchedulerModeSkip         SchedulerMode = "skip"
)

// BillingOutcome is the result for one subscription in a billing run
type BillingOutcome string

const (
	BillingOutcomeCreated BillingOutcome = "created"
	BillingOutcomeResent  BillingOutcome = "resent"
	BillingOutcomeSkipped BillingOutcome = "skipped"
	BillingOutcomeFailed  BillingOutcome = "failed"
)
