package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petalpost/petalpost/internal/api/dto"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/service"
	"github.com/petalpost/petalpost/internal/types"
)

type SubscriptionHandler struct {
	service  service.SubscriptionService
	billing  service.BillingService
	invoices service.InvoiceService
	log      *logger.Logger
}

func NewSubscriptionHandler(
	service service.SubscriptionService,
	billing service.BillingService,
	invoices service.InvoiceService,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:  service,
		billing:  billing,
		invoices: invoices,
		log:      log,
	}
}

// @Summary Sign up for a subscription
// @Description Creates the subscription and its first invoice
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param subscription body dto.CreateSubscriptionRequest true "Subscription"
// @Success 201 {object} dto.SignupResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions [post]
func (h *SubscriptionHandler) Signup(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a subscription
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /subscriptions/{id} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	resp, err := h.service.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List subscriptions
// @Tags Subscriptions
// @Produce json
// @Param customer_id query string false "Customer ID"
// @Param status query []string false "Statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.ListSubscriptionsResponse
// @Router /subscriptions [get]
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	limit, offset, err := parsePage(c)
	if err != nil {
		c.Error(err)
		return
	}

	filter := &types.SubscriptionFilter{
		CustomerID: c.Query("customer_id"),
		Limit:      limit,
		Offset:     offset,
	}
	for _, s := range c.QueryArray("status") {
		status := types.SubscriptionStatus(s)
		if err := status.Validate(); err != nil {
			c.Error(err)
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	resp, err := h.service.ListSubscriptions(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Pause a subscription
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/pause [post]
func (h *SubscriptionHandler) PauseSubscription(c *gin.Context) {
	resp, err := h.service.PauseSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Resume a subscription
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/resume [post]
func (h *SubscriptionHandler) ResumeSubscription(c *gin.Context) {
	resp, err := h.service.ResumeSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a subscription
// @Description Cancels the subscription and every pending invoice
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/cancel [post]
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	resp, err := h.service.CancelSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Change delivery slots
// @Description Applies from the next cycle
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.UpdateDeliverySlotsRequest true "Slots"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/slots [put]
func (h *SubscriptionHandler) UpdateDeliverySlots(c *gin.Context) {
	var req dto.UpdateDeliverySlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateDeliverySlots(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Resend a cycle invoice
// @Description Gets or creates the cycle invoice and emails it
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.ResendInvoiceRequest false "Cycle"
// @Success 200 {object} dto.ResendInvoiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /subscriptions/{id}/resend [post]
func (h *SubscriptionHandler) ResendInvoice(c *gin.Context) {
	var req dto.ResendInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return
		}
	}

	cycle, err := req.ParseCycleMonth()
	if err != nil {
		c.Error(err)
		return
	}

	resp, err := h.billing.ResendCycleInvoice(c.Request.Context(), c.Param("id"), cycle)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List a subscription's invoices
// @Tags Invoices
// @Produce json
// @Param id path string true "Subscription ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.ListInvoicesResponse
// @Router /subscriptions/{id}/invoices [get]
func (h *SubscriptionHandler) ListInvoices(c *gin.Context) {
	limit, offset, err := parsePage(c)
	if err != nil {
		c.Error(err)
		return
	}

	resp, err := h.invoices.ListSubscriptionInvoices(c.Request.Context(), c.Param("id"), &types.InvoiceFilter{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
