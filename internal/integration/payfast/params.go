package payfast

import (
	"net/url"
	"strings"

	ierr "github.com/petalpost/petalpost/internal/errors"
)

// Field names of the gateway wire contract
const (
	FieldMerchantID    = "merchant_id"
	FieldMerchantKey   = "merchant_key"
	FieldReturnURL     = "return_url"
	FieldCancelURL     = "cancel_url"
	FieldNotifyURL     = "notify_url"
	FieldNameFirst     = "name_first"
	FieldEmailAddress  = "email_address"
	FieldMPaymentID    = "m_payment_id"
	FieldAmount        = "amount"
	FieldItemName      = "item_name"
	FieldCustomStr1    = "custom_str1"
	FieldSignature     = "signature"
	FieldPassphrase    = "passphrase"
	FieldPfPaymentID   = "pf_payment_id"
	FieldPaymentStatus = "payment_status"
	FieldAmountGross   = "amount_gross"
	FieldAmountFee     = "amount_fee"
	FieldAmountNet     = "amount_net"
)

// PaymentStatusComplete is the only status that settles a payable
const PaymentStatusComplete = "COMPLETE"

// Param is a single key/value pair. The gateway signs parameters in the
// order they were posted, so Params is a slice and never a map.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list
type Params []Param

// ParseForm decodes an application/x-www-form-urlencoded body keeping the
// original field order.
func ParseForm(body []byte) (Params, error) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return nil, ierr.NewError("empty notification body").
			WithHint("The notification did not carry any parameters").
			Mark(ierr.ErrValidation)
	}

	params := make(Params, 0, strings.Count(raw, "&")+1)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Malformed parameter name %q", k).
				Mark(ierr.ErrValidation)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Malformed value for parameter %q", key).
				Mark(ierr.ErrValidation)
		}
		params = append(params, Param{Key: key, Value: value})
	}
	return params, nil
}

// Get returns the first value for key
func (p Params) Get(key string) string {
	for _, param := range p {
		if param.Key == key {
			return param.Value
		}
	}
	return ""
}

// Has reports whether key was posted
func (p Params) Has(key string) bool {
	for _, param := range p {
		if param.Key == key {
			return true
		}
	}
	return false
}

// Without returns a copy of p with every occurrence of key removed
func (p Params) Without(key string) Params {
	out := make(Params, 0, len(p))
	for _, param := range p {
		if param.Key != key {
			out = append(out, param)
		}
	}
	return out
}

// Add appends a parameter
func (p *Params) Add(key, value string) {
	*p = append(*p, Param{Key: key, Value: value})
}

// Pairs returns the params as raw pairs for persistence
func (p Params) Pairs() [][2]string {
	out := make([][2]string, len(p))
	for i, param := range p {
		out[i] = [2]string{param.Key, param.Value}
	}
	return out
}

// Encode builds the canonical `key=value&...` string. Values are trimmed and
// url-encoded with spaces as '+'.
func (p Params) Encode(skipEmpty bool) string {
	var b strings.Builder
	for _, param := range p {
		value := strings.TrimSpace(param.Value)
		if skipEmpty && value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(param.Key)
		b.WriteByte('=')
		b.WriteString(encodeValue(value))
	}
	return b.String()
}

// encodeValue matches the gateway's encoder, which also escapes '~'
func encodeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "~", "%7E")
}
