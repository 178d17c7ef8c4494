package types

// PaymentSessionStatus is the state of a gateway checkout session.
// Every state other than pending is terminal.
type PaymentSessionStatus string

const (
	PaymentSessionStatusPending          PaymentSessionStatus = "pending"
	PaymentSessionStatusCompleted        PaymentSessionStatus = "completed"
	PaymentSessionStatusValidationFailed PaymentSessionStatus = "validation_failed"
	PaymentSessionStatusSuperseded       PaymentSessionStatus = "superseded"
)

// GatewayMode records which gateway environment a session was created against
type GatewayMode string

const (
	GatewayModeSandbox GatewayMode = "sandbox"
	GatewayModeLive    GatewayMode = "live"
)

// PaymentCheck names one independent trust check applied to a notification
type PaymentCheck string

const (
	PaymentCheckSignature     PaymentCheck = "signature"
	PaymentCheckSourceIP      PaymentCheck = "source_ip"
	PaymentCheckGateway       PaymentCheck = "gateway_confirmation"
	PaymentCheckInvoiceAmount PaymentCheck = "invoice_amount"
	PaymentCheckReference     PaymentCheck = "reference"
	PaymentCheckStatus        PaymentCheck = "payment_status"
	PaymentCheckMerchant      PaymentCheck = "merchant"
)

// NotificationDecision is the reconciler's verdict on one notification
type NotificationDecision string

const (
	NotificationDecisionAccepted  NotificationDecision = "accepted"
	NotificationDecisionRejected  NotificationDecision = "rejected"
	NotificationDecisionRetry     NotificationDecision = "retry"
	NotificationDecisionDuplicate NotificationDecision = "duplicate"
)

// PayableType distinguishes what a payment session settles
type PayableType string

const (
	PayableTypeInvoice PayableType = "invoice"
	PayableTypeOrder   PayableType = "order"
)

// OrderStatus is the state of a retail order
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusCancelled      OrderStatus = "cancelled"
)
