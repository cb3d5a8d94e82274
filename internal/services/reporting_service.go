package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lessonbook/payments-backend/internal/models"
	"github.com/lessonbook/payments-backend/pkg/processor"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
)

// ReportingOptions configures the reporting queries
type ReportingOptions struct {
	Window             time.Duration // trailing window, 36h by default
	BalancePageSize    int64
	IntentPageSize     int64
	PaymentMethodLimit int64
}

// ReportingService runs the financial reporting queries over processor data
type ReportingService struct {
	gateway processor.Gateway
	opts    ReportingOptions
	logger  *logrus.Logger
	now     func() time.Time
}

// NewReportingService creates a new reporting service
func NewReportingService(gateway processor.Gateway, opts ReportingOptions, logger *logrus.Logger) *ReportingService {
	return &ReportingService{
		gateway: gateway,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Totals is the running accumulator folded over balance transactions
type Totals struct {
	Revenue int64
	Fees    int64
}

// Net is revenue minus fees
func (t Totals) Net() int64 {
	return t.Revenue - t.Fees
}

// SummarizeTransactions sums amounts and fees. Integer addition is associative,
// so the order of the transactions does not change the result.
func SummarizeTransactions(txns []*stripe.BalanceTransaction) Totals {
	var totals Totals
	for _, txn := range txns {
		totals.Revenue += txn.Amount
		totals.Fees += txn.Fee
	}
	return totals
}

// windowStart returns the inclusive lower bound of the reporting window in unix seconds
func (s *ReportingService) windowStart() int64 {
	return s.now().Add(-s.opts.Window).Unix()
}

// AllBalanceTransactions returns every balance transaction created inside the window
func (s *ReportingService) AllBalanceTransactions(ctx context.Context) ([]*stripe.BalanceTransaction, error) {
	since := s.windowStart()
	fetch := func(ctx context.Context, startingAfter string) (*processor.Page[*stripe.BalanceTransaction], error) {
		return s.gateway.ListBalanceTransactions(ctx, processor.ListWindow{
			CreatedGTE:    since,
			Limit:         s.opts.BalancePageSize,
			StartingAfter: startingAfter,
		})
	}
	return CollectAll(ctx, fetch, func(bt *stripe.BalanceTransaction) string { return bt.ID })
}

// AllPaymentIntents returns every payment intent created inside the window
func (s *ReportingService) AllPaymentIntents(ctx context.Context) ([]*stripe.PaymentIntent, error) {
	since := s.windowStart()
	fetch := func(ctx context.Context, startingAfter string) (*processor.Page[*stripe.PaymentIntent], error) {
		return s.gateway.ListPaymentIntents(ctx, processor.ListWindow{
			CreatedGTE:    since,
			Limit:         s.opts.IntentPageSize,
			StartingAfter: startingAfter,
		})
	}
	return CollectAll(ctx, fetch, func(pi *stripe.PaymentIntent) string { return pi.ID })
}

// CalculateLessonTotal sums every balance transaction in the trailing window
func (s *ReportingService) CalculateLessonTotal(ctx context.Context) (*models.LessonTotals, error) {
	txns, err := s.AllBalanceTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect balance transactions: %w", err)
	}

	totals := SummarizeTransactions(txns)

	s.logger.WithFields(logrus.Fields{
		"transactions": len(txns),
		"revenue":      totals.Revenue,
		"fees":         totals.Fees,
	}).Info("Lesson totals calculated")

	return &models.LessonTotals{
		PaymentTotal: totals.Revenue,
		FeeTotal:     totals.Fees,
		NetTotal:     totals.Net(),
	}, nil
}

// FindCustomersWithFailedPayments reports intents that failed with the payment method
// that is still the customer's first method on file, i.e. the customer has not
// supplied a new card since.
func (s *ReportingService) FindCustomersWithFailedPayments(ctx context.Context) ([]models.FailedPaymentReport, error) {
	intents, err := s.AllPaymentIntents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect payment intents: %w", err)
	}

	// Lookups are pure within one request, so repeated customers reuse the first answer
	methodsByCustomer := make(map[string][]*stripe.PaymentMethod)

	reports := make([]models.FailedPaymentReport, 0)
	for _, pi := range intents {
		if !isFailedAttempt(pi) {
			continue
		}

		customerID := pi.Customer.ID
		methods, ok := methodsByCustomer[customerID]
		if !ok {
			methods, err = s.gateway.ListCustomerPaymentMethods(ctx, customerID, s.opts.PaymentMethodLimit, false)
			if err != nil {
				return nil, fmt.Errorf("failed to list payment methods for %s: %w", customerID, err)
			}
			methodsByCustomer[customerID] = methods
		}

		if !failedWithCurrentMethod(pi, methods) {
			continue
		}

		customer, err := s.gateway.GetCustomer(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve customer %s: %w", customerID, err)
		}

		reports = append(reports, buildFailedPaymentReport(customer, pi, methods[0]))
	}

	s.logger.WithFields(logrus.Fields{
		"payment_intents": len(intents),
		"matches":         len(reports),
	}).Info("Failed payment scan completed")

	return reports, nil
}

// isFailedAttempt reports whether the intent is waiting for a new payment method after an error
func isFailedAttempt(pi *stripe.PaymentIntent) bool {
	return pi.Status == stripe.PaymentIntentStatusRequiresPaymentMethod &&
		pi.LastPaymentError != nil &&
		pi.Customer != nil && pi.Customer.ID != ""
}

// failedWithCurrentMethod compares the failing method with the customer's first listed method
func failedWithCurrentMethod(pi *stripe.PaymentIntent, methods []*stripe.PaymentMethod) bool {
	if len(methods) == 0 || pi.LastPaymentError.PaymentMethod == nil {
		return false
	}
	return pi.LastPaymentError.PaymentMethod.ID == methods[0].ID
}

func buildFailedPaymentReport(customer *stripe.Customer, pi *stripe.PaymentIntent, method *stripe.PaymentMethod) models.FailedPaymentReport {
	report := models.FailedPaymentReport{
		Customer: models.FailedPaymentCustomer{
			ID:    customer.ID,
			Email: customer.Email,
			Name:  customer.Name,
		},
		PaymentIntent: models.FailedPaymentIntentSummary{
			Created:     pi.Created,
			Description: pi.Description,
			Status:      "failed",
			Error:       string(pi.LastPaymentError.DeclineCode),
		},
	}
	if method.Card != nil {
		report.PaymentMethod = models.FailedPaymentMethodSummary{
			Last4: method.Card.Last4,
			Brand: string(method.Card.Brand),
		}
	}
	return report
}
