package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/internal/services"
)

// ReportHandler serves the reporting queries
type ReportHandler struct {
	reportingService *services.ReportingService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportingService *services.ReportingService) *ReportHandler {
	return &ReportHandler{reportingService: reportingService}
}

// CalculateLessonTotal handles GET /calculate-lesson-total
func (h *ReportHandler) CalculateLessonTotal(c *gin.Context) {
	totals, err := h.reportingService.CalculateLessonTotal(c.Request.Context())
	if err != nil {
		respondInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// FindCustomersWithFailedPayments handles GET /find-customers-with-failed-payments
func (h *ReportHandler) FindCustomersWithFailedPayments(c *gin.Context) {
	reports, err := h.reportingService.FindCustomersWithFailedPayments(c.Request.Context())
	if err != nil {
		respondInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}
