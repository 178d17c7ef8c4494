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

// AdminHandler serves the back-office console. Every mutation takes a
// reason and is written to the audit trail with the operator's id.
type AdminHandler struct {
	service service.AdminService
	log     *logger.Logger
}

func NewAdminHandler(service service.AdminService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		log:     log,
	}
}

func bindAdminRequest(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return false
	}
	return true
}

// @Summary Override a subscription's status
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Param request body dto.OverrideSubscriptionStatusRequest true "Status and reason"
// @Success 200 {object} dto.AdminResponse[dto.SubscriptionResponse]
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/subscriptions/{id}/status [put]
func (h *AdminHandler) OverrideSubscriptionStatus(c *gin.Context) {
	var req dto.OverrideSubscriptionStatusRequest
	if !bindAdminRequest(c, &req) {
		return
	}

	resp, err := h.service.OverrideSubscriptionStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Override an invoice's status
// @Description Marks an invoice paid (for example after a bank transfer) or cancelled
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invoice ID"
// @Param request body dto.OverrideInvoiceStatusRequest true "Status and reason"
// @Success 200 {object} dto.AdminResponse[dto.InvoiceResponse]
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/invoices/{id}/status [put]
func (h *AdminHandler) OverrideInvoiceStatus(c *gin.Context) {
	var req dto.OverrideInvoiceStatusRequest
	if !bindAdminRequest(c, &req) {
		return
	}

	resp, err := h.service.OverrideInvoiceStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Add a one-off charge to a pending invoice
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invoice ID"
// @Param request body dto.AddInvoiceChargeRequest true "Charge"
// @Success 200 {object} dto.AdminResponse[dto.InvoiceResponse]
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/invoices/{id}/charges [post]
func (h *AdminHandler) AddInvoiceCharge(c *gin.Context) {
	var req dto.AddInvoiceChargeRequest
	if !bindAdminRequest(c, &req) {
		return
	}

	resp, err := h.service.AddInvoiceCharge(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Remove a charge from a pending invoice
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invoice ID"
// @Param charge_id path string true "Adjustment ID"
// @Param request body dto.RemoveChargeRequest true "Reason"
// @Success 200 {object} dto.AdminResponse[dto.InvoiceResponse]
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/invoices/{id}/charges/{charge_id} [delete]
func (h *AdminHandler) RemoveInvoiceCharge(c *gin.Context) {
	var req dto.RemoveChargeRequest
	if !bindAdminRequest(c, &req) {
		return
	}

	resp, err := h.service.RemoveInvoiceCharge(c.Request.Context(), c.Param("id"), c.Param("charge_id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Add a recurring charge to a subscription
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Param request body dto.AddRecurringChargeRequest true "Charge"
// @Success 200 {object} dto.AdminResponse[dto.SubscriptionResponse]
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/subscriptions/{id}/recurring-charges [post]
func (h *AdminHandler) AddRecurringCharge(c *gin.Context) {
	var req dto.AddRecurringChargeRequest
	if !bindAdminRequest(c, &req) {
		return
	}

	resp, err := h.service.AddRecurringCharge(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Remove a recurring charge from a subscription
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Param charge_id path string true "Recurring charge ID"
// @Param request body dto.RemoveChargeRequest true "Reason"
// @Success 200 {object} dto.AdminResponse[dto.SubscriptionResponse]
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/subscriptions/{id}/recurring-charges/{charge_id} [delete]
func (h *AdminHandler) RemoveRecurringCharge(c *gin.Context) {
	var req dto.RemoveChargeRequest
	if !bindAdminRequest(c, &req) {
		return
	}

	resp, err := h.service.RemoveRecurringCharge(c.Request.Context(), c.Param("id"), c.Param("charge_id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Reassign a subscription's plan
// @Description Reprices the pending current-cycle invoice, or issues a top-up when it is already paid
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Param request body dto.ReassignPlanRequest true "Plan"
// @Success 200 {object} dto.AdminResponse[dto.ReassignPlanResult]
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/subscriptions/{id}/plan [put]
func (h *AdminHandler) ReassignPlan(c *gin.Context) {
	var req dto.ReassignPlanRequest
	if !bindAdminRequest(c, &req) {
		return
	}

	resp, err := h.service.ReassignPlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Approve manual payment
// @Description Allows the subscription to pay by bank transfer
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Param request body dto.ApproveManualPaymentRequest true "Reason"
// @Success 200 {object} dto.AdminResponse[dto.SubscriptionResponse]
// @Router /admin/subscriptions/{id}/manual-payment [post]
func (h *AdminHandler) ApproveManualPayment(c *gin.Context) {
	var req dto.ApproveManualPaymentRequest
	if !bindAdminRequest(c, &req) {
		return
	}

	resp, err := h.service.ApproveManualPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List the audit trail of an entity
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param entity_type query string true "subscription or invoice"
// @Param entity_id query string true "Entity ID"
// @Success 200 {object} dto.ListAuditRecordsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/audit [get]
func (h *AdminHandler) ListAuditRecords(c *gin.Context) {
	entityType := types.AuditEntityType(c.Query("entity_type"))
	if err := entityType.Validate(); err != nil {
		c.Error(err)
		return
	}

	resp, err := h.service.ListAuditRecords(c.Request.Context(), entityType, c.Query("entity_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
