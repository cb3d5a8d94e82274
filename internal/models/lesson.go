package models

// RegisterLessonRequest is the body of POST /lessons
type RegisterLessonRequest struct {
	Name          string `json:"name" form:"name" binding:"required"`
	Email         string `json:"email" form:"email" binding:"required"`
	LessonDetails string `json:"lesson_details" form:"lesson_details"`
}

// ScheduleLessonRequest is the body of POST /schedule-lesson.
// Amount is in minor units.
type ScheduleLessonRequest struct {
	CustomerID  string `json:"customer_id" form:"customer_id" binding:"required"`
	Amount      int64  `json:"amount" form:"amount" binding:"required"`
	Description string `json:"description" form:"description"`
}

// CompleteLessonPaymentRequest is the body of POST /complete-lesson-payment.
// A nil Amount captures the full authorization.
type CompleteLessonPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" form:"payment_intent_id" binding:"required"`
	Amount          *int64 `json:"amount,omitempty" form:"amount"`
}

// RefundLessonRequest is the body of POST /refund-lesson.
// A nil Amount refunds the whole charge.
type RefundLessonRequest struct {
	PaymentIntentID string `json:"payment_intent_id" form:"payment_intent_id" binding:"required"`
	Amount          *int64 `json:"amount,omitempty" form:"amount"`
}

// UpdatePaymentDetailsRequest is the body of POST /update-payment-details/:customer_id
type UpdatePaymentDetailsRequest struct {
	Name  string `json:"name" form:"name"`
	Email string `json:"email" form:"email"`
}

// DeleteAccountResult is the response of POST /delete-account/:customer_id.
// Exactly one of the two fields is set.
type DeleteAccountResult struct {
	Deleted            bool     `json:"deleted,omitempty"`
	UncapturedPayments []string `json:"uncaptured_payments,omitempty"`
}

// RefundResponse is the response of POST /refund-lesson
type RefundResponse struct {
	Refund string `json:"refund"`
}

// ConfigResponse is the response of GET /config
type ConfigResponse struct {
	Key string `json:"key"`
}
