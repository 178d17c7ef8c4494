package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/metrics"
	"github.com/petalpost/petalpost/internal/service"
)

// maxNotificationBytes bounds an inbound gateway notification body
const maxNotificationBytes = 64 << 10

// WebhookHandler receives inbound gateway notifications
type WebhookHandler struct {
	reconciler service.ReconcilerService
	metrics    *metrics.Collector
	logger     *logger.Logger
}

func NewWebhookHandler(reconciler service.ReconcilerService, metrics *metrics.Collector, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
	}
}

// @Summary PayFast instant transaction notification
// @Description Every notification is logged. A 200 ends redelivery, for accepted and permanently rejected notifications alike. A 503 asks the gateway to deliver again.
// @Tags Webhooks
// @Accept x-www-form-urlencoded
// @Produce plain
// @Success 200 {string} string "OK"
// @Failure 503 {object} ierr.ErrorResponse
// @Router /webhooks/payfast/itn [post]
func (h *WebhookHandler) HandlePayFastITN(c *gin.Context) {
	// the raw body is needed as-is, the signature covers the field order
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBytes))
	if err != nil {
		h.logger.Errorw("failed to read notification body", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrTransient))
		return
	}

	result, err := h.reconciler.HandleNotification(c.Request.Context(), body, c.ClientIP())
	h.metrics.ObserveNotification(result)
	if err != nil {
		// a malformed notification must not be redelivered forever
		if ierr.IsValidation(err) || ierr.IsVerification(err) {
			h.logger.Warnw("notification rejected", "error", err)
			c.String(http.StatusOK, "OK")
			return
		}
		h.logger.Warnw("notification deferred", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("notification handled",
		"reference", result.Reference,
		"decision", result.Decision,
		"failed_checks", result.FailedChecks,
	)
	c.String(http.StatusOK, "OK")
}
