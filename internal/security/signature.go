package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	ierr "github.com/petalpost/petalpost/internal/errors"
)

// SignatureHeader carries the signature of an outbound webhook delivery
const SignatureHeader = "X-Petalpost-Signature"

// DefaultTolerance is how old a signed delivery may be when verified
const DefaultTolerance = 5 * time.Minute

// SignPayload signs body for an endpoint secret. The result has the form
// "t=<unix>,v1=<hex hmac-sha256 of "<unix>.<body>">".
func SignPayload(secret string, body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + computeSignature(secret, ts, body)
}

// VerifyPayload checks a header produced by SignPayload. Receivers use it
// to authenticate deliveries; it lives here so both sides share one format.
func VerifyPayload(secret string, body []byte, header string, now time.Time, tolerance time.Duration) error {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return ierr.NewError("malformed signature header").
			WithHint("Signature header must carry t and v1").
			Mark(ierr.ErrVerification)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Signature timestamp is not a number").
			Mark(ierr.ErrVerification)
	}
	if tolerance > 0 && now.Sub(time.Unix(unix, 0)).Abs() > tolerance {
		return ierr.NewError("signature timestamp outside tolerance").
			WithHint("Signed delivery is too old").
			Mark(ierr.ErrVerification)
	}

	expected := computeSignature(secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ierr.NewError("signature mismatch").
			WithHint("Signature does not match the payload").
			Mark(ierr.ErrVerification)
	}
	return nil
}

func computeSignature(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
