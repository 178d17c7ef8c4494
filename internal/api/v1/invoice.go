package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/service"
)

type InvoiceHandler struct {
	service  service.InvoiceService
	payments service.PaymentService
	log      *logger.Logger
}

func NewInvoiceHandler(
	service service.InvoiceService,
	payments service.PaymentService,
	log *logger.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		service:  service,
		payments: payments,
		log:      log,
	}
}

// @Summary Get an invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	resp, err := h.service.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List an invoice's payment sessions
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {array} dto.PaymentSessionResponse
// @Router /invoices/{id}/payment-sessions [get]
func (h *InvoiceHandler) ListPaymentSessions(c *gin.Context) {
	resp, err := h.payments.ListInvoiceSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": resp})
}
