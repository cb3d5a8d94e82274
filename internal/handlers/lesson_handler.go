package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/internal/models"
	"github.com/lessonbook/payments-backend/internal/services"
	"github.com/stripe/stripe-go/v76"
)

// LessonHandler serves sign-up and the lesson payment lifecycle
type LessonHandler struct {
	lessonService *services.LessonService
	auditService  *services.AuditService
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(lessonService *services.LessonService, auditService *services.AuditService) *LessonHandler {
	return &LessonHandler{
		lessonService: lessonService,
		auditService:  auditService,
	}
}

// ExistingCustomerResponse is returned by POST /lessons for a duplicate email
type ExistingCustomerResponse struct {
	ExistingCustomer *stripe.Customer `json:"existing_customer"`
	Error            string           `json:"error"`
}

// PaymentResponse wraps a payment intent as {payment: ...}
type PaymentResponse struct {
	Payment *stripe.PaymentIntent `json:"payment"`
}

// Register handles POST /lessons
func (h *LessonHandler) Register(c *gin.Context) {
	var req models.RegisterLessonRequest
	if err := c.ShouldBind(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	setupIntent, err := h.lessonService.Register(c.Request.Context(), req)
	if err != nil {
		var exists *services.CustomerExistsError
		if errors.As(err, &exists) {
			c.JSON(http.StatusBadRequest, ExistingCustomerResponse{
				ExistingCustomer: exists.Existing,
				Error:            customerExistsMessage,
			})
			return
		}
		if isClientError(err) {
			respondBadRequest(c, err)
			return
		}
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, setupIntent)
}

// ScheduleLesson handles POST /schedule-lesson
func (h *LessonHandler) ScheduleLesson(c *gin.Context) {
	meta := requestMeta(c)

	var req models.ScheduleLessonRequest
	if err := c.ShouldBind(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	pi, err := h.lessonService.ScheduleLesson(c.Request.Context(), req)
	if err != nil {
		var scheduleErr *services.ScheduleError
		paymentIntentID := ""
		if errors.As(err, &scheduleErr) {
			paymentIntentID = scheduleErr.PaymentIntentID
		}
		h.auditService.SafeRecord("schedule_lesson",
			h.auditService.LogAuthorization(c.Request.Context(), meta, req.CustomerID, req.Amount, paymentIntentID, "", err))

		code, message := describeError(err)
		c.Error(err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:           ErrorDetail{Code: code, Message: message},
			PaymentIntentID: paymentIntentID,
		})
		return
	}

	h.auditService.SafeRecord("schedule_lesson",
		h.auditService.LogAuthorization(c.Request.Context(), meta, req.CustomerID, req.Amount, pi.ID, pi.Status, nil))

	c.JSON(http.StatusOK, PaymentResponse{Payment: pi})
}

// CompleteLessonPayment handles POST /complete-lesson-payment
func (h *LessonHandler) CompleteLessonPayment(c *gin.Context) {
	meta := requestMeta(c)

	var req models.CompleteLessonPaymentRequest
	if err := c.ShouldBind(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	pi, err := h.lessonService.CompleteLessonPayment(c.Request.Context(), req.PaymentIntentID, req.Amount)
	h.auditService.SafeRecord("complete_lesson_payment",
		h.auditService.LogCapture(c.Request.Context(), meta, req.PaymentIntentID, req.Amount, pi, err))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, PaymentResponse{Payment: pi})
}

// RefundLesson handles POST /refund-lesson
func (h *LessonHandler) RefundLesson(c *gin.Context) {
	meta := requestMeta(c)

	var req models.RefundLessonRequest
	if err := c.ShouldBind(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	refund, err := h.lessonService.RefundLesson(c.Request.Context(), req.PaymentIntentID, req.Amount)
	h.auditService.SafeRecord("refund_lesson",
		h.auditService.LogRefund(c.Request.Context(), meta, req.PaymentIntentID, req.Amount, refund, err))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, models.RefundResponse{Refund: refund.ID})
}
