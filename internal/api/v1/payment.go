package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/api/dto"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/service"
)

type PaymentHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log,
	}
}

// @Summary Start a hosted checkout
// @Description Opens a payment session and returns the signed gateway form. Any earlier pending session of the same payable is superseded.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.CreateCheckoutRequest true "Payable"
// @Success 201 {object} dto.CheckoutResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /payments/checkout [post]
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	var req dto.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateCheckout(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a payment session
// @Tags Payments
// @Produce json
// @Param reference path string true "Payment reference"
// @Success 200 {object} dto.PaymentSessionResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/sessions/{reference} [get]
func (h *PaymentHandler) GetSession(c *gin.Context) {
	resp, err := h.service.GetSession(c.Request.Context(), c.Param("reference"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
