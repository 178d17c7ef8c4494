package security

import (
	"testing"
	"time"

	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	at := time.Date(2024, 10, 28, 6, 0, 0, 0, time.UTC)
	body := []byte(`{"event_name":"invoice.created"}`)

	header := SignPayload("whsec", body, at)
	assert.Contains(t, header, "t=1730095200,v1=")
	require.NoError(t, VerifyPayload("whsec", body, header, at.Add(time.Minute), DefaultTolerance))

	tests := []struct {
		name   string
		secret string
		body   []byte
		header string
		now    time.Time
	}{
		{"wrong secret", "other", body, header, at},
		{"tampered body", "whsec", []byte(`{"event_name":"invoice.paid"}`), header, at},
		{"stale", "whsec", body, header, at.Add(time.Hour)},
		{"malformed", "whsec", body, "v1=abc", at},
		{"bad timestamp", "whsec", body, "t=x,v1=abc", at},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPayload(tt.secret, tt.body, tt.header, tt.now, DefaultTolerance)
			assert.True(t, ierr.IsVerification(err))
		})
	}
}
