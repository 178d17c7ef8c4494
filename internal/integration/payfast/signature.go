package payfast

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	ierr "github.com/petalpost/petalpost/internal/errors"
)

// Sign computes the gateway signature over params. Any posted signature is
// excluded; a non-empty passphrase is appended as a trailing parameter and
// is never sent on the wire.
func Sign(params Params, passphrase string, skipEmpty bool) string {
	payload := params.Without(FieldSignature).Encode(skipEmpty)
	if p := strings.TrimSpace(passphrase); p != "" {
		if payload != "" {
			payload += "&"
		}
		payload += FieldPassphrase + "=" + encodeValue(p)
	}
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifySignature recomputes the signature of an inbound notification and
// compares it against the posted one in constant time. Notifications are
// signed over every posted field, empty ones included.
func VerifySignature(params Params, passphrase string) error {
	posted := strings.ToLower(strings.TrimSpace(params.Get(FieldSignature)))
	if posted == "" {
		return ierr.NewError("missing signature").
			WithHint("The notification is not signed").
			Mark(ierr.ErrVerification)
	}

	expected := Sign(params, passphrase, false)
	if subtle.ConstantTimeCompare([]byte(posted), []byte(expected)) != 1 {
		return ierr.NewError("signature mismatch").
			WithHint("The notification signature does not match its parameters").
			Mark(ierr.ErrVerification)
	}
	return nil
}
