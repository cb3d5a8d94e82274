package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/internal/models"
)

const (
	defaultAuditWindow = 24 * time.Hour
	defaultAuditLimit  = 50
	maxAuditLimit      = 500
)

// AuditReader reads back the payment audit trail
type AuditReader interface {
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*models.PaymentAudit, error)
	GetByCustomerID(ctx context.Context, customerID string) ([]*models.PaymentAudit, error)
	GetRecentByEventType(ctx context.Context, eventType models.PaymentEventType, since time.Time, limit int) ([]*models.PaymentAudit, error)
}

// AuditHandler lets the back office look up audit entries
type AuditHandler struct {
	reader AuditReader
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(reader AuditReader) *AuditHandler {
	return &AuditHandler{reader: reader}
}

// AuditListResponse wraps the matching entries
type AuditListResponse struct {
	Audits []*models.PaymentAudit `json:"audits"`
}

var errAuditFilter = errors.New("exactly one of payment_intent_id, customer_id or event_type is required")

// List handles GET /admin/audits?payment_intent_id=|customer_id=|event_type=[&since=&limit=]
func (h *AuditHandler) List(c *gin.Context) {
	paymentIntentID := c.Query("payment_intent_id")
	customerID := c.Query("customer_id")
	eventType := c.Query("event_type")

	filters := 0
	for _, v := range []string{paymentIntentID, customerID, eventType} {
		if v != "" {
			filters++
		}
	}
	if filters != 1 {
		respondInvalidBody(c, errAuditFilter)
		return
	}

	ctx := c.Request.Context()
	var (
		audits []*models.PaymentAudit
		err    error
	)
	switch {
	case paymentIntentID != "":
		audits, err = h.reader.GetByPaymentIntentID(ctx, paymentIntentID)
	case customerID != "":
		audits, err = h.reader.GetByCustomerID(ctx, customerID)
	default:
		since, limit, parseErr := parseAuditWindow(c)
		if parseErr != nil {
			respondInvalidBody(c, parseErr)
			return
		}
		audits, err = h.reader.GetRecentByEventType(ctx, models.PaymentEventType(eventType), since, limit)
	}
	if err != nil {
		respondInternalError(c, err)
		return
	}

	if audits == nil {
		audits = []*models.PaymentAudit{}
	}
	c.JSON(http.StatusOK, AuditListResponse{Audits: audits})
}

// parseAuditWindow reads since (RFC 3339) and limit, applying the defaults
func parseAuditWindow(c *gin.Context) (time.Time, int, error) {
	since := time.Now().Add(-defaultAuditWindow)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, 0, errors.New("since must be an RFC 3339 timestamp")
		}
		since = parsed
	}

	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxAuditLimit {
			return time.Time{}, 0, errors.New("limit must be between 1 and 500")
		}
		limit = parsed
	}
	return since, limit, nil
}
