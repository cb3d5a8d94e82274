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

// deletionScanLimit bounds the payment intents inspected before deleting a customer
const deletionScanLimit = 100

// AccountService manages a student's payment details and account lifetime
type AccountService struct {
	gateway            processor.Gateway
	paymentMethodLimit int64
	emailValidator     *validator.EmailValidator
	logger             *logrus.Logger
}

// NewAccountService creates a new account service
func NewAccountService(gateway processor.Gateway, paymentMethodLimit int64, logger *logrus.Logger) *AccountService {
	return &AccountService{
		gateway:            gateway,
		paymentMethodLimit: paymentMethodLimit,
		emailValidator:     validator.NewEmailValidator(),
		logger:             logger,
	}
}

// GetBilledPaymentMethod copies the owning customer's name and email onto the
// method's billing details and returns the updated method
func (s *AccountService) GetBilledPaymentMethod(ctx context.Context, paymentMethodID string) (*stripe.PaymentMethod, error) {
	pm, err := s.gateway.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return nil, err
	}
	if pm.Customer == nil || pm.Customer.ID == "" {
		return nil, &PreconditionError{
			Code:    "payment_method_not_attached",
			Message: fmt.Sprintf("payment method %s is not attached to a customer", paymentMethodID),
		}
	}

	customer, err := s.gateway.GetCustomer(ctx, pm.Customer.ID)
	if err != nil {
		return nil, err
	}

	return s.gateway.UpdatePaymentMethodBilling(ctx, paymentMethodID, customer.Name, customer.Email)
}

// GetFirstPaymentMethod returns the first listed method, with the customer expanded
func (s *AccountService) GetFirstPaymentMethod(ctx context.Context, customerID string) (*stripe.PaymentMethod, error) {
	methods, err := s.gateway.ListCustomerPaymentMethods(ctx, customerID, s.paymentMethodLimit, true)
	if err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		return nil, ErrNoPaymentMethod(customerID)
	}
	return methods[0], nil
}

// UpdatePaymentDetails changes the customer's name or email, mirrors the change onto
// the first payment method's billing details and issues a fresh setup intent.
// Empty fields keep the current value.
func (s *AccountService) UpdatePaymentDetails(ctx context.Context, customerID string, req models.UpdatePaymentDetailsRequest) (*stripe.SetupIntent, error) {
	if req.Email != "" {
		email, err := s.emailValidator.Validate(req.Email)
		if err != nil {
			return nil, &PreconditionError{Code: "invalid_email", Message: err.Error()}
		}
		req.Email = email
	}

	customer, err := s.gateway.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	name, email := req.Name, req.Email
	if name == "" {
		name = customer.Name
	}
	if email == "" {
		email = customer.Email
	}

	if email != customer.Email {
		// Same eventually consistent lookup as registration
		existing, err := s.gateway.FindCustomersByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing customers: %w", err)
		}
		if len(existing) > 0 {
			return nil, &CustomerExistsError{Existing: existing[0]}
		}
	}

	if name != customer.Name || email != customer.Email {
		if _, err := s.gateway.UpdateCustomer(ctx, customerID, name, email); err != nil {
			return nil, err
		}

		methods, err := s.gateway.ListCustomerPaymentMethods(ctx, customerID, s.paymentMethodLimit, false)
		if err != nil {
			return nil, err
		}
		if len(methods) > 0 {
			if _, err := s.gateway.UpdatePaymentMethodBilling(ctx, methods[0].ID, name, email); err != nil {
				return nil, err
			}
		}

		s.logger.WithFields(logrus.Fields{
			"customer_id":     customerID,
			"methods_on_file": len(methods),
		}).Info("Customer details updated")
	}

	return s.gateway.CreateSetupIntent(ctx, customerID)
}

// DeleteAccount deletes the customer unless one of their payment intents is still
// awaiting capture, in which case the blocking intent ids are returned instead.
// The check and the deletion are separate calls and not atomic.
func (s *AccountService) DeleteAccount(ctx context.Context, customerID string) (*models.DeleteAccountResult, error) {
	intents, err := s.gateway.ListCustomerPaymentIntents(ctx, customerID, deletionScanLimit)
	if err != nil {
		return nil, err
	}

	var uncaptured []string
	for _, pi := range intents {
		if pi.Status == stripe.PaymentIntentStatusRequiresCapture {
			uncaptured = append(uncaptured, pi.ID)
		}
	}

	if len(uncaptured) > 0 {
		s.logger.WithFields(logrus.Fields{
			"customer_id": customerID,
			"uncaptured":  len(uncaptured),
		}).Info("Account deletion blocked by uncaptured payments")
		return &models.DeleteAccountResult{UncapturedPayments: uncaptured}, nil
	}

	if err := s.gateway.DeleteCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	s.logger.WithField("customer_id", customerID).Info("Customer deleted")
	return &models.DeleteAccountResult{Deleted: true}, nil
}
