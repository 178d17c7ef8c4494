package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/metrics"
	"github.com/petalpost/petalpost/internal/service"
)

// BillingHandler handles the daily billing trigger
type BillingHandler struct {
	billingService service.BillingService
	metrics        *metrics.Collector
	logger         *logger.Logger
}

// NewBillingHandler creates a new billing cron handler
func NewBillingHandler(billingService service.BillingService, metrics *metrics.Collector, logger *logger.Logger) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		metrics:        metrics,
		logger:         logger,
	}
}

// RunBilling runs the recurring billing scheduler for today. It takes no
// input: the day and target cycle come from the wall clock.
func (h *BillingHandler) RunBilling(c *gin.Context) {
	resp, err := h.billingService.RunScheduler(c.Request.Context())
	if err != nil {
		h.logger.Errorw("billing run failed", "error", err)
		c.Error(err)
		return
	}

	h.metrics.ObserveBillingRun(resp)
	c.JSON(http.StatusOK, resp)
}
