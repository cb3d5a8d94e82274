package services

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
)

// ErrCustomerExists is returned when the email lookup finds a customer already using the address
var ErrCustomerExists = errors.New("customer email already exists")

// CustomerExistsError carries the customer found by the email lookup
type CustomerExistsError struct {
	Existing *stripe.Customer
}

func (e *CustomerExistsError) Error() string {
	return ErrCustomerExists.Error()
}

// Is lets errors.Is match ErrCustomerExists
func (e *CustomerExistsError) Is(target error) bool {
	return target == ErrCustomerExists
}

// PreconditionError reports a request that cannot proceed given the current processor state
type PreconditionError struct {
	Code    string
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// ErrNoPaymentMethod builds the error returned when a customer has no card on file
func ErrNoPaymentMethod(customerID string) *PreconditionError {
	return &PreconditionError{
		Code:    "no_payment_method",
		Message: fmt.Sprintf("no payment methods found for %s", customerID),
	}
}

// ScheduleError is a failed authorization after the payment intent was created
type ScheduleError struct {
	PaymentIntentID string
	Err             error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("failed to authorize payment intent %s: %v", e.PaymentIntentID, e.Err)
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}
