package dto

import (
	"time"

	"github.com/petalpost/petalpost/internal/types"
)

// BillingRunResponse summarises one daily scheduler run
type BillingRunResponse struct {
	Mode        types.SchedulerMode `json:"mode"`
	RunAt       time.Time           `json:"run_at"`
	TargetCycle *types.CycleMonth   `json:"target_cycle,omitempty"`

	Created      int `json:"created"`
	Resent       int `json:"resent"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	EmailsSent   int `json:"emails_sent"`
	EmailsFailed int `json:"emails_failed"`

	Results []*SubscriptionRunResult `json:"results,omitempty"`
}

// SubscriptionRunResult is the outcome for one subscription
type SubscriptionRunResult struct {
	SubscriptionID string                   `json:"subscription_id"`
	Outcome        types.BillingOutcome     `json:"outcome"`
	InvoiceID      string                   `json:"invoice_id,omitempty"`
	CycleMonth     *types.CycleMonth        `json:"cycle_month,omitempty"`
	EmailStatus    types.NotificationStatus `json:"email_status,omitempty"`
	Detail         string                   `json:"detail,omitempty"`
}
