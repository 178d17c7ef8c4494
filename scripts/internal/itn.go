package internal

import (
	"fmt"
	"os"

	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/integration/payfast"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
)

// SignSandboxITN prints a signed COMPLETE notification body for a payment
// reference, for replaying gateway traffic against a local server. The
// source-IP and gateway confirmation checks still apply.
func SignSandboxITN() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	if !cfg.PayFast.Sandbox {
		return ierr.NewError("refusing to sign for the live gateway").
			WithHint("Set payfast.sandbox to sign test notifications").
			Mark(ierr.ErrInvalidOperation)
	}

	reference := os.Getenv("REFERENCE")
	payableID := os.Getenv("PAYABLE_ID")
	amount, err := decimal.NewFromString(os.Getenv("AMOUNT"))
	if err != nil || reference == "" || payableID == "" {
		return ierr.NewError("reference, payable id and amount are required").
			WithHint("Pass -reference, -payable-id and -amount").
			Mark(ierr.ErrValidation)
	}

	var params payfast.Params
	params.Add(payfast.FieldMPaymentID, payableID)
	params.Add(payfast.FieldPfPaymentID, types.GenerateShortIDWithPrefix("SBX", 12))
	params.Add(payfast.FieldPaymentStatus, payfast.PaymentStatusComplete)
	params.Add(payfast.FieldAmountGross, types.FormatAmount(amount))
	params.Add(payfast.FieldCustomStr1, reference)
	params.Add(payfast.FieldMerchantID, cfg.PayFast.MerchantID)
	params.Add(payfast.FieldSignature, payfast.Sign(params, cfg.PayFast.Passphrase, false))

	fmt.Println(params.Encode(false))
	return nil
}
