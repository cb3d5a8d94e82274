package services

import (
	"context"
	"fmt"

	"github.com/lessonbook/payments-backend/internal/models"
	"github.com/lessonbook/payments-backend/pkg/processor"
	"github.com/lessonbook/payments-backend/pkg/validator"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
)

const lessonPaymentType = "lessons-payment"

// LessonOptions configures how lesson payments are created
type LessonOptions struct {
	Currency           string
	ReturnURL          string
	PaymentMethodLimit int64
}

// LessonService handles sign-up and the authorize, capture and refund lifecycle of lesson payments
type LessonService struct {
	gateway        processor.Gateway
	opts           LessonOptions
	emailValidator *validator.EmailValidator
	logger         *logrus.Logger
}

// NewLessonService creates a new lesson service
func NewLessonService(gateway processor.Gateway, opts LessonOptions, logger *logrus.Logger) *LessonService {
	return &LessonService{
		gateway:        gateway,
		opts:           opts,
		emailValidator: validator.NewEmailValidator(),
		logger:         logger,
	}
}

// Register creates a customer and a card setup intent for a new student.
// The email lookup lists customers and is eventually consistent, so two
// concurrent sign-ups with the same address can both pass it.
func (s *LessonService) Register(ctx context.Context, req models.RegisterLessonRequest) (*stripe.SetupIntent, error) {
	email, err := s.emailValidator.Validate(req.Email)
	if err != nil {
		return nil, &PreconditionError{Code: "invalid_email", Message: err.Error()}
	}
	req.Email = email

	existing, err := s.gateway.FindCustomersByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing customers: %w", err)
	}
	if len(existing) > 0 {
		s.logger.WithField("customer_id", existing[0].ID).Info("Registration rejected: email already in use")
		return nil, &CustomerExistsError{Existing: existing[0]}
	}

	customer, err := s.gateway.CreateCustomer(ctx, processor.CustomerInput{
		Name:        req.Name,
		Email:       req.Email,
		FirstLesson: req.LessonDetails,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	setupIntent, err := s.gateway.CreateSetupIntent(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create setup intent: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"customer_id":     customer.ID,
		"setup_intent_id": setupIntent.ID,
	}).Info("Student registered")

	return setupIntent, nil
}

// ScheduleLesson authorizes a manual-capture payment against the customer's first payment method
func (s *LessonService) ScheduleLesson(ctx context.Context, req models.ScheduleLessonRequest) (*stripe.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, &PreconditionError{Code: "invalid_amount", Message: "amount must be a positive integer in minor units"}
	}

	methods, err := s.gateway.ListCustomerPaymentMethods(ctx, req.CustomerID, s.opts.PaymentMethodLimit, false)
	if err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		return nil, ErrNoPaymentMethod(req.CustomerID)
	}

	pi, err := s.gateway.CreatePaymentIntent(ctx, processor.PaymentIntentInput{
		CustomerID:    req.CustomerID,
		Amount:        req.Amount,
		Currency:      s.opts.Currency,
		Description:   req.Description,
		ManualCapture: true,
		Metadata:      map[string]string{"type": lessonPaymentType},
	})
	if err != nil {
		return nil, err
	}

	confirmed, err := s.gateway.ConfirmPaymentIntent(ctx, pi.ID, methods[0].ID, s.opts.ReturnURL)
	if err != nil {
		s.logger.WithError(err).WithField("payment_intent_id", pi.ID).Warn("Lesson authorization failed")
		return nil, &ScheduleError{PaymentIntentID: pi.ID, Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"customer_id":       req.CustomerID,
		"payment_intent_id": confirmed.ID,
		"status":            confirmed.Status,
	}).Info("Lesson authorized")

	return confirmed, nil
}

// CompleteLessonPayment captures an authorization. A nil amount captures it in full.
func (s *LessonService) CompleteLessonPayment(ctx context.Context, paymentIntentID string, amount *int64) (*stripe.PaymentIntent, error) {
	if amount != nil && *amount <= 0 {
		return nil, &PreconditionError{Code: "invalid_amount", Message: "amount must be a positive integer in minor units"}
	}

	pi, err := s.gateway.CapturePaymentIntent(ctx, paymentIntentID, amount)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_intent_id": pi.ID,
		"amount_received":   pi.AmountReceived,
	}).Info("Lesson payment captured")

	return pi, nil
}

// RefundLesson refunds the latest charge of a payment intent with reason requested_by_customer
func (s *LessonService) RefundLesson(ctx context.Context, paymentIntentID string, amount *int64) (*stripe.Refund, error) {
	if amount != nil && *amount <= 0 {
		return nil, &PreconditionError{Code: "invalid_amount", Message: "amount must be a positive integer in minor units"}
	}

	pi, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if pi.LatestCharge == nil || pi.LatestCharge.ID == "" {
		return nil, &PreconditionError{
			Code:    "payment_intent_not_charged",
			Message: fmt.Sprintf("payment intent %s has no charge to refund", paymentIntentID),
		}
	}

	refund, err := s.gateway.CreateRefund(ctx, processor.RefundInput{
		ChargeID: pi.LatestCharge.ID,
		Amount:   amount,
		Reason:   string(stripe.RefundReasonRequestedByCustomer),
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_intent_id": paymentIntentID,
		"refund_id":         refund.ID,
	}).Info("Lesson refunded")

	return refund, nil
}
