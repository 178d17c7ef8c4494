package validator

import (
	"testing"

	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/stretchr/testify/assert"
)

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,notblank"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&reasonRequest{Reason: "customer asked"}))

	err := ValidateRequest(&reasonRequest{Reason: "   "})
	assert.True(t, ierr.IsValidation(err))

	err = ValidateRequest(&reasonRequest{})
	assert.True(t, ierr.IsValidation(err))
}
