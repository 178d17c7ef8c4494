package router

import (
	"net"

	"github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/httpclient"
	"github.com/petalpost/petalpost/internal/logger"
)

// shouldRetry decides whether a failed message goes back through the retry
// middleware or is acknowledged and dropped
func shouldRetry(logger *logger.Logger, err error) bool {
	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		logger.Debugw("endpoint returned an error",
			"status_code", httpErr.StatusCode,
			"retryable", httpErr.Retryable(),
			"response", httpErr.Excerpt(),
		)
		return httpErr.Retryable()
	}

	if errors.IsTransient(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("retrying due to network timeout", "error", netErr)
		return true
	}

	if errors.IsValidation(err) ||
		errors.IsNotFound(err) ||
		errors.IsPermissionDenied(err) ||
		errors.IsVerification(err) {
		return false
	}

	return true
}
