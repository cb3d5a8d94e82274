package processor

import (
	"context"

	"github.com/stripe/stripe-go/v76"
)

// Gateway defines the payment processor operations used by the lesson backend.
// Every entity returned here is owned by the processor; callers never persist them.
type Gateway interface {
	// FindCustomersByEmail returns the first page of customers with the given email.
	// The underlying list is eventually consistent, so an empty result does not
	// prove that no such customer exists.
	FindCustomersByEmail(ctx context.Context, email string) ([]*stripe.Customer, error)
	CreateCustomer(ctx context.Context, input CustomerInput) (*stripe.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error)
	UpdateCustomer(ctx context.Context, customerID, name, email string) (*stripe.Customer, error)
	DeleteCustomer(ctx context.Context, customerID string) error

	// CreateSetupIntent starts a card-only setup flow for the customer
	CreateSetupIntent(ctx context.Context, customerID string) (*stripe.SetupIntent, error)

	// ListCustomerPaymentMethods returns up to limit methods, most recently attached first
	ListCustomerPaymentMethods(ctx context.Context, customerID string, limit int64, expandCustomer bool) ([]*stripe.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, paymentMethodID string) (*stripe.PaymentMethod, error)
	UpdatePaymentMethodBilling(ctx context.Context, paymentMethodID, name, email string) (*stripe.PaymentMethod, error)

	CreatePaymentIntent(ctx context.Context, input PaymentIntentInput) (*stripe.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, paymentIntentID, paymentMethodID, returnURL string) (*stripe.PaymentIntent, error)
	// CapturePaymentIntent settles an authorization; a nil amount captures the full amount
	CapturePaymentIntent(ctx context.Context, paymentIntentID string, amount *int64) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*stripe.PaymentIntent, error)
	ListCustomerPaymentIntents(ctx context.Context, customerID string, limit int64) ([]*stripe.PaymentIntent, error)

	CreateRefund(ctx context.Context, input RefundInput) (*stripe.Refund, error)

	// ListBalanceTransactions and ListPaymentIntents fetch exactly one page
	ListBalanceTransactions(ctx context.Context, window ListWindow) (*Page[*stripe.BalanceTransaction], error)
	ListPaymentIntents(ctx context.Context, window ListWindow) (*Page[*stripe.PaymentIntent], error)

	// ConstructWebhookEvent verifies the signature header and decodes the event
	ConstructWebhookEvent(payload []byte, signature string) (stripe.Event, error)
}

// CustomerInput holds the fields used to create a customer
type CustomerInput struct {
	Name        string
	Email       string
	FirstLesson string // stored as metadata first_lesson
}

// PaymentIntentInput holds the fields used to create a lesson authorization
type PaymentIntentInput struct {
	CustomerID    string
	Amount        int64 // minor units
	Currency      string
	Description   string
	ManualCapture bool
	Metadata      map[string]string
}

// RefundInput holds the fields used to refund a charge
type RefundInput struct {
	ChargeID string
	Amount   *int64 // nil refunds the remaining charge amount
	Reason   string
}

// ListWindow selects one page of a created-time filtered list
type ListWindow struct {
	CreatedGTE    int64 // unix seconds, inclusive lower bound
	Limit         int64
	StartingAfter string // id of the last record of the previous page, empty for the first page
}

// Page is a single page of a cursor-paginated list
type Page[T any] struct {
	Data    []T
	HasMore bool
}
