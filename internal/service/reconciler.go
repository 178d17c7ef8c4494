package service

import (
	"context"
	"fmt"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/payment"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/integration/payfast"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ReconcilerService settles payables from gateway notifications (ITNs)
type ReconcilerService interface {
	// HandleNotification verifies one notification and applies it. An error
	// marked ErrTransient means nothing was decided and the gateway should
	// deliver the notification again.
	HandleNotification(ctx context.Context, body []byte, sourceIP string) (*dto.ITNResult, error)
}

type reconcilerService struct {
	ServiceParams
}

func NewReconcilerService(params ServiceParams) ReconcilerService {
	return &reconcilerService{ServiceParams: params}
}

// itn is one parsed inbound notification
type itn struct {
	params           payfast.Params
	sourceIP         string
	reference        string
	gatewayPaymentID string
}

func (s *reconcilerService) HandleNotification(ctx context.Context, body []byte, sourceIP string) (*dto.ITNResult, error) {
	params, err := payfast.ParseForm(body)
	if err != nil {
		return nil, err
	}

	n := &itn{
		params:           params,
		sourceIP:         sourceIP,
		reference:        params.Get(payfast.FieldCustomStr1),
		gatewayPaymentID: params.Get(payfast.FieldPfPaymentID),
	}
	result := &dto.ITNResult{Reference: n.reference}

	// A forged or misdirected notification must not be able to fail a
	// legitimate session, so these only reach the log.
	checks := s.localChecks(n)
	if hasFailed(checks, types.PaymentCheckSignature, types.PaymentCheckMerchant) {
		return s.logOnly(ctx, n, result, checks, types.NotificationDecisionRejected)
	}

	session, err := s.SessionRepo.Get(ctx, n.reference)
	if ierr.IsNotFound(err) {
		checks = append(checks, payment.CheckResult{
			Check:  types.PaymentCheckReference,
			Detail: "unknown payment reference",
		})
		return s.logOnly(ctx, n, result, checks, types.NotificationDecisionRejected)
	}
	if err != nil {
		return nil, err
	}
	result.PayableType = session.PayableType
	result.PayableID = session.PayableID()

	if !session.IsPending() {
		decision, check := closedSessionOutcome(session, n)
		if check != nil {
			checks = append(checks, *check)
			// report a price change underneath a stale session as well
			if target, err := s.getPayable(ctx, session.PayableType, session.PayableID(), false); err == nil {
				if amount := amountCheck(n, target); !amount.Passed {
					checks = append(checks, amount)
				}
			}
		}
		return s.logOnly(ctx, n, result, checks, decision)
	}

	networkChecks, transientErr := s.networkChecks(ctx, n)
	checks = append(checks, networkChecks...)
	if transientErr != nil && len(payment.FailedChecks(checks)) == 0 {
		if _, err := s.logOnly(ctx, n, result, checks, types.NotificationDecisionRetry); err != nil {
			return nil, err
		}
		return result, transientErr
	}

	var settled payable
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		settled = nil

		session, err := s.SessionRepo.GetForUpdate(ctx, n.reference)
		if err != nil {
			return err
		}

		txChecks := append([]payment.CheckResult(nil), checks...)
		if !session.IsPending() {
			// a concurrent delivery of the same notification got here first
			decision, check := closedSessionOutcome(session, n)
			if check != nil {
				txChecks = append(txChecks, *check)
			}
			return s.record(ctx, n, result, txChecks, decision)
		}

		target, err := s.lockPayable(ctx, session.PayableType, session.PayableID())
		if err != nil {
			return err
		}
		txChecks = append(txChecks,
			amountCheck(n, target),
			referenceCheck(n, session, target),
		)

		now := s.Clock.Now().UTC()
		decision := types.NotificationDecisionAccepted
		if failed := payment.FailedChecks(txChecks); len(failed) > 0 {
			decision = types.NotificationDecisionRejected
			if err := session.Fail(failed); err != nil {
				return err
			}
		} else {
			if err := session.Complete(n.gatewayPaymentID, now); err != nil {
				return err
			}
			if err := target.MarkPaid(session.Reference, now); err != nil {
				return err
			}
			if err := s.savePayable(ctx, target); err != nil {
				return err
			}
			settled = target
		}

		if err := s.SessionRepo.Update(ctx, session); err != nil {
			return err
		}
		return s.record(ctx, n, result, txChecks, decision)
	})
	if err != nil {
		return nil, err
	}

	s.afterDecision(ctx, result)
	if settled != nil {
		s.publishPaidEvent(ctx, settled)
	}
	return result, nil
}

// localChecks need nothing but the posted parameters
func (s *reconcilerService) localChecks(n *itn) []payment.CheckResult {
	checks := make([]payment.CheckResult, 0, 7)

	sig := payment.CheckResult{Check: types.PaymentCheckSignature, Passed: true}
	if err := s.Gateway.VerifySignature(n.params); err != nil {
		sig.Passed = false
		sig.Detail = "signature mismatch"
	}
	checks = append(checks, sig)

	merchant := n.params.Get(payfast.FieldMerchantID)
	checks = append(checks, payment.CheckResult{
		Check:  types.PaymentCheckMerchant,
		Passed: merchant == s.Gateway.MerchantID(),
		Detail: lo.Ternary(merchant == s.Gateway.MerchantID(), "", fmt.Sprintf("unexpected merchant %q", merchant)),
	})

	status := n.params.Get(payfast.FieldPaymentStatus)
	checks = append(checks, payment.CheckResult{
		Check:  types.PaymentCheckStatus,
		Passed: status == payfast.PaymentStatusComplete,
		Detail: lo.Ternary(status == payfast.PaymentStatusComplete, "", fmt.Sprintf("payment status %q", status)),
	})
	return checks
}

// networkChecks call out to DNS and the gateway. The returned error is set
// when a check could not be decided.
func (s *reconcilerService) networkChecks(ctx context.Context, n *itn) ([]payment.CheckResult, error) {
	var transientErr error
	checks := make([]payment.CheckResult, 0, 2)

	source := payment.CheckResult{Check: types.PaymentCheckSourceIP, Passed: true}
	if s.Config.PayFast.SkipSourceIPCheck {
		source.Detail = "skipped"
		checks = append(checks, source)
	} else {
		allowed, err := s.SourceVerifier.Allowed(ctx, n.sourceIP)
		switch {
		case err != nil:
			transientErr = err
		case !allowed:
			source.Passed = false
			source.Detail = fmt.Sprintf("source %s is not a gateway host", n.sourceIP)
			checks = append(checks, source)
		default:
			checks = append(checks, source)
		}
	}

	confirm := payment.CheckResult{Check: types.PaymentCheckGateway, Passed: true}
	if err := s.Gateway.Validate(ctx, n.params); err != nil {
		if ierr.IsTransient(err) {
			transientErr = err
		} else {
			confirm.Passed = false
			confirm.Detail = "gateway did not confirm the notification"
			checks = append(checks, confirm)
		}
	} else {
		checks = append(checks, confirm)
	}

	if transientErr != nil {
		transientErr = ierr.WithError(transientErr).
			WithHint("Payment could not be verified right now, retry later").
			Mark(ierr.ErrTransient)
	}
	return checks, transientErr
}

// amountCheck compares against what is owed now, not what the session froze
func amountCheck(n *itn, target payable) payment.CheckResult {
	check := payment.CheckResult{Check: types.PaymentCheckInvoiceAmount}

	raw := n.params.Get(payfast.FieldAmountGross)
	paid, err := decimal.NewFromString(raw)
	if err != nil {
		check.Detail = fmt.Sprintf("unreadable amount %q", raw)
		return check
	}

	due := types.Round2(target.Amount())
	if !types.Round2(paid).Equal(due) {
		check.Detail = fmt.Sprintf("paid %s but %s is due", types.Round2(paid).StringFixed(2), due.StringFixed(2))
		return check
	}
	check.Passed = true
	return check
}

func referenceCheck(n *itn, session *payment.Session, target payable) payment.CheckResult {
	check := payment.CheckResult{Check: types.PaymentCheckReference}

	switch active := target.ActiveReference(); {
	case !target.IsPending():
		check.Detail = "payable is no longer awaiting payment"
	case active == nil || *active != session.Reference:
		check.Detail = "reference is not the active payment reference"
	case n.params.Has(payfast.FieldMPaymentID) && n.params.Get(payfast.FieldMPaymentID) != target.ID():
		check.Detail = "m_payment_id does not match the payable"
	default:
		check.Passed = true
	}
	return check
}

// closedSessionOutcome classifies a notification for a session that is no
// longer pending
func closedSessionOutcome(session *payment.Session, n *itn) (types.NotificationDecision, *payment.CheckResult) {
	if session.Status == types.PaymentSessionStatusCompleted &&
		n.gatewayPaymentID != "" &&
		lo.FromPtr(session.GatewayPaymentID) == n.gatewayPaymentID {
		return types.NotificationDecisionDuplicate, nil
	}
	return types.NotificationDecisionRejected, &payment.CheckResult{
		Check:  types.PaymentCheckReference,
		Detail: fmt.Sprintf("payment session is %s", session.Status),
	}
}

// logOnly records the notification without touching the session or payable
func (s *reconcilerService) logOnly(ctx context.Context, n *itn, result *dto.ITNResult, checks []payment.CheckResult, decision types.NotificationDecision) (*dto.ITNResult, error) {
	if err := s.record(ctx, n, result, checks, decision); err != nil {
		return nil, err
	}
	s.afterDecision(ctx, result)
	return result, nil
}

func (s *reconcilerService) record(ctx context.Context, n *itn, result *dto.ITNResult, checks []payment.CheckResult, decision types.NotificationDecision) error {
	result.Decision = decision
	result.FailedChecks = payment.FailedChecks(checks)

	return s.NotificationRepo.Create(ctx, &payment.Notification{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NOTIFICATION),
		Reference:        n.reference,
		GatewayPaymentID: n.gatewayPaymentID,
		PaymentStatus:    n.params.Get(payfast.FieldPaymentStatus),
		AmountGross:      n.params.Get(payfast.FieldAmountGross),
		SourceIP:         n.sourceIP,
		RawParams:        types.NewJSONB(n.params.Without(payfast.FieldSignature).Pairs()),
		Checks:           types.NewJSONB(checks),
		Decision:         decision,
		CreatedAt:        s.Clock.Now().UTC(),
	})
}

func (s *reconcilerService) afterDecision(ctx context.Context, result *dto.ITNResult) {
	fields := []any{
		"reference", result.Reference,
		"decision", result.Decision,
		"payable_type", result.PayableType,
		"payable_id", result.PayableID,
	}
	if len(result.FailedChecks) > 0 {
		fields = append(fields, "failed_checks", result.FailedChecks)
		s.Logger.Warnw("payment notification not accepted", fields...)
	} else {
		s.Logger.Infow("payment notification processed", fields...)
	}

	if result.Decision == types.NotificationDecisionRejected {
		s.publishPaymentRejectedEvent(ctx, result)
	}
}

func hasFailed(checks []payment.CheckResult, names ...types.PaymentCheck) bool {
	return lo.SomeBy(checks, func(c payment.CheckResult) bool {
		return !c.Passed && lo.Contains(names, c.Check)
	})
}
