package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/internal/services"
	"github.com/lessonbook/payments-backend/pkg/processor"
	"github.com/sirupsen/logrus"
)

// maxWebhookBodyBytes matches the processor's documented event size ceiling
const maxWebhookBodyBytes = int64(65536)

// WebhookHandler receives processor events
type WebhookHandler struct {
	gateway      processor.Gateway
	auditService *services.AuditService
	logger       *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(gateway processor.Gateway, auditService *services.AuditService, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		gateway:      gateway,
		auditService: auditService,
		logger:       logger,
	}
}

// Receive handles POST /webhook
func (h *WebhookHandler) Receive(c *gin.Context) {
	meta := requestMeta(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := c.GetRawData()
	if err != nil {
		respondInvalidBody(c, err)
		return
	}

	event, err := h.gateway.ConstructWebhookEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.WithError(err).WithField("ip", meta.IPAddress).Warn("Rejected webhook")
		c.Error(err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "invalid_webhook", Message: err.Error()}})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	}).Info("Webhook received")

	h.auditService.SafeRecord("webhook", h.auditService.LogWebhook(c.Request.Context(), meta, event))

	c.JSON(http.StatusOK, gin.H{"received": true})
}
