package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/internal/models"
	"github.com/lessonbook/payments-backend/internal/services"
)

// AccountHandler serves payment method lookups and account management
type AccountHandler struct {
	accountService *services.AccountService
	auditService   *services.AuditService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountService *services.AccountService, auditService *services.AuditService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		auditService:   auditService,
	}
}

// GetBilledPaymentMethod handles GET /payment-methods/:id
func (h *AccountHandler) GetBilledPaymentMethod(c *gin.Context) {
	pm, err := h.accountService.GetBilledPaymentMethod(c.Request.Context(), c.Param("id"))
	if err != nil {
		if isClientError(err) {
			respondBadRequest(c, err)
			return
		}
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, pm)
}

// GetFirstPaymentMethod handles GET /payment-method/:customer_id
func (h *AccountHandler) GetFirstPaymentMethod(c *gin.Context) {
	pm, err := h.accountService.GetFirstPaymentMethod(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, pm)
}

// UpdatePaymentDetails handles POST /update-payment-details/:customer_id
func (h *AccountHandler) UpdatePaymentDetails(c *gin.Context) {
	var req models.UpdatePaymentDetailsRequest
	if err := c.ShouldBind(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	setupIntent, err := h.accountService.UpdatePaymentDetails(c.Request.Context(), c.Param("customer_id"), req)
	if err != nil {
		if isClientError(err) {
			respondBadRequest(c, err)
			return
		}
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, setupIntent)
}

// DeleteAccount handles POST /delete-account/:customer_id
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	meta := requestMeta(c)
	customerID := c.Param("customer_id")

	result, err := h.accountService.DeleteAccount(c.Request.Context(), customerID)
	h.auditService.SafeRecord("delete_account",
		h.auditService.LogAccountDeletion(c.Request.Context(), meta, customerID, result, err))
	if err != nil {
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
