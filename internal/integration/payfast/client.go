package payfast

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/httpclient"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
)

const validResponse = "VALID"

// Gateway defines the hosted payment gateway operations the billing core needs
type Gateway interface {
	// BuildCheckout returns the signed form a customer posts to the gateway
	BuildCheckout(req CheckoutRequest) (*Checkout, error)
	// Validate asks the gateway to confirm that it really sent the notification
	Validate(ctx context.Context, params Params) error
	// VerifySignature checks the notification signature with the local passphrase
	VerifySignature(params Params) error
	// MerchantID is the merchant the notifications must be addressed to
	MerchantID() string
	Mode() types.GatewayMode
}

// CheckoutRequest describes a payable to collect through the hosted page
type CheckoutRequest struct {
	// Reference is the payment session reference carried in custom_str1
	Reference string
	// PayableID is echoed back as m_payment_id
	PayableID string
	Amount    decimal.Decimal
	ItemName  string
	Email     string
	FirstName string
}

// Checkout is the signed form to render as an auto-submitting POST
type Checkout struct {
	Action string `json:"action"`
	Fields Params `json:"-"`
}

// FieldMap returns the form fields for JSON responses
func (c *Checkout) FieldMap() map[string]string {
	out := make(map[string]string, len(c.Fields))
	for _, f := range c.Fields {
		out[f.Key] = f.Value
	}
	return out
}

// Client talks to the hosted gateway
type Client struct {
	cfg    config.PayFastConfig
	http   httpclient.Client
	logger *logger.Logger
}

// NewClient creates a new gateway client
func NewClient(cfg *config.Configuration, httpClient httpclient.Client, logger *logger.Logger) Gateway {
	return &Client{
		cfg:    cfg.PayFast,
		http:   httpClient,
		logger: logger,
	}
}

func (c *Client) MerchantID() string {
	return c.cfg.MerchantID
}

func (c *Client) Mode() types.GatewayMode {
	return c.cfg.Mode()
}

// BuildCheckout assembles the fixed checkout field set in wire order and signs it
func (c *Client) BuildCheckout(req CheckoutRequest) (*Checkout, error) {
	if req.Reference == "" || req.PayableID == "" {
		return nil, ierr.NewError("checkout requires a reference and a payable").
			WithHint("Payment reference and payable id are required").
			Mark(ierr.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return nil, ierr.NewError("checkout amount must be positive").
			WithHintf("Cannot collect %s", types.FormatAmount(req.Amount)).
			Mark(ierr.ErrValidation)
	}

	fields := Params{}
	fields.Add(FieldMerchantID, c.cfg.MerchantID)
	fields.Add(FieldMerchantKey, c.cfg.MerchantKey)
	fields.Add(FieldReturnURL, c.cfg.ReturnURL)
	fields.Add(FieldCancelURL, c.cfg.CancelURL)
	fields.Add(FieldNotifyURL, c.cfg.NotifyURL)
	fields.Add(FieldNameFirst, req.FirstName)
	fields.Add(FieldEmailAddress, req.Email)
	fields.Add(FieldMPaymentID, req.PayableID)
	fields.Add(FieldAmount, types.FormatAmount(req.Amount))
	fields.Add(FieldItemName, req.ItemName)
	fields.Add(FieldCustomStr1, req.Reference)

	// empty optional fields are neither posted nor signed
	posted := make(Params, 0, len(fields)+1)
	for _, f := range fields {
		if strings.TrimSpace(f.Value) != "" {
			posted = append(posted, f)
		}
	}
	posted.Add(FieldSignature, Sign(posted, c.cfg.Passphrase, true))

	return &Checkout{
		Action: c.cfg.ProcessURL(),
		Fields: posted,
	}, nil
}

func (c *Client) VerifySignature(params Params) error {
	return VerifySignature(params, c.cfg.Passphrase)
}

// Validate posts the notification back to the gateway's validation endpoint.
// Anything but a VALID answer is a permanent rejection; a timeout or a 5xx is
// transient.
func (c *Client) Validate(ctx context.Context, params Params) error {
	timeout := c.cfg.ValidateTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:      http.MethodPost,
		URL:         c.cfg.ValidateURL(),
		Body:        []byte(params.Without(FieldSignature).Encode(false)),
		ContentType: httpclient.ContentTypeForm,
		Timeout:     timeout,
	})
	if err != nil {
		if httpErr, ok := httpclient.IsHTTPError(err); ok && !httpErr.Retryable() {
			c.logger.Warnw("gateway validation rejected the request",
				"status_code", httpErr.StatusCode,
				"response", httpErr.Excerpt(),
				"reference", params.Get(FieldCustomStr1))
			return ierr.WithError(err).
				WithHint("The gateway refused to confirm this notification").
				Mark(ierr.ErrVerification)
		}
		c.logger.Warnw("gateway validation unavailable",
			"error", err,
			"reference", params.Get(FieldCustomStr1))
		return ierr.WithError(err).
			WithHint("Could not reach the gateway to confirm the notification").
			Mark(ierr.ErrTransient)
	}

	if strings.TrimSpace(string(resp.Body)) != validResponse {
		return ierr.NewError("gateway did not confirm the notification").
			WithHint("The gateway reported the notification as invalid").
			WithReportableDetails(map[string]interface{}{
				"response": strings.TrimSpace(string(resp.Body)),
			}).
			Mark(ierr.ErrVerification)
	}
	return nil
}
