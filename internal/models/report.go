package models

// LessonTotals is the response of GET /calculate-lesson-total.
// All amounts are integer minor units (cents).
type LessonTotals struct {
	PaymentTotal int64 `json:"payment_total"`
	FeeTotal     int64 `json:"fee_total"`
	NetTotal     int64 `json:"net_total"`
}

// FailedPaymentReport describes a customer whose last payment failed with the
// payment method that is still their first method on file
type FailedPaymentReport struct {
	Customer      FailedPaymentCustomer      `json:"customer"`
	PaymentIntent FailedPaymentIntentSummary `json:"payment_intent"`
	PaymentMethod FailedPaymentMethodSummary `json:"payment_method"`
}

// FailedPaymentCustomer identifies the customer
type FailedPaymentCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// FailedPaymentIntentSummary summarizes the failed attempt
type FailedPaymentIntentSummary struct {
	Created     int64  `json:"created"`
	Description string `json:"description"`
	Status      string `json:"status"` // always "failed"
	Error       string `json:"error"`  // decline code of the last payment error
}

// FailedPaymentMethodSummary describes the card on file
type FailedPaymentMethodSummary struct {
	Last4 string `json:"last4"`
	Brand string `json:"brand"`
}
