package router

import (
	"net/http"
	"testing"

	"github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/httpclient"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	log := logger.NewNoopLogger()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"endpoint unavailable", httpclient.NewError(http.StatusServiceUnavailable, nil), true},
		{"endpoint rejected payload", httpclient.NewError(http.StatusUnprocessableEntity, nil), false},
		{"transient", errors.NewError("dns down").Mark(errors.ErrTransient), true},
		{"validation", errors.NewError("bad payload").Mark(errors.ErrValidation), false},
		{"not found", errors.NewError("gone").Mark(errors.ErrNotFound), false},
		{"unknown", errors.NewError("boom").Mark(errors.ErrSystem), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRetry(log, tt.err))
		})
	}
}
