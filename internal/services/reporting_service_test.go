package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lessonbook/payments-backend/pkg/processor/processortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

var reportNow = time.Date(2024, 2, 26, 12, 0, 0, 0, time.UTC)

func newTestReportingService(gateway *processortest.FakeGateway, pageSize int64) *ReportingService {
	svc := NewReportingService(gateway, ReportingOptions{
		Window:             36 * time.Hour,
		BalancePageSize:    pageSize,
		IntentPageSize:     pageSize,
		PaymentMethodLimit: 3,
	}, testLogger())
	svc.now = func() time.Time { return reportNow }
	return svc
}

func failedIntent(id, customerID, paymentMethodID string, created int64) *stripe.PaymentIntent {
	return &stripe.PaymentIntent{
		ID:          id,
		Created:     created,
		Description: "Lesson on Feb 25th",
		Status:      stripe.PaymentIntentStatusRequiresPaymentMethod,
		Customer:    &stripe.Customer{ID: customerID},
		LastPaymentError: &stripe.Error{
			Code:          stripe.ErrorCodeCardDeclined,
			DeclineCode:   stripe.DeclineCode("insufficient_funds"),
			PaymentMethod: &stripe.PaymentMethod{ID: paymentMethodID},
		},
	}
}

func TestSummarizeTransactions(t *testing.T) {
	totals := SummarizeTransactions([]*stripe.BalanceTransaction{
		{Amount: 1000, Fee: 30},
		{Amount: 500, Fee: 10},
	})

	assert.Equal(t, int64(1500), totals.Revenue)
	assert.Equal(t, int64(40), totals.Fees)
	assert.Equal(t, int64(1460), totals.Net())

	reversed := SummarizeTransactions([]*stripe.BalanceTransaction{
		{Amount: 500, Fee: 10},
		{Amount: 1000, Fee: 30},
	})
	assert.Equal(t, totals, reversed)

	assert.Equal(t, Totals{}, SummarizeTransactions(nil))
}

func TestCalculateLessonTotal(t *testing.T) {
	ctx := context.Background()
	recent := reportNow.Add(-time.Hour).Unix()

	t.Run("Sums every page inside the window", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.BalanceTransactions = []*stripe.BalanceTransaction{
			{ID: "txn_1", Amount: 1000, Fee: 30, Created: recent},
			{ID: "txn_2", Amount: 500, Fee: 10, Created: recent},
			{ID: "txn_3", Amount: -200, Fee: 0, Created: recent},
			{ID: "txn_old", Amount: 9999, Fee: 99, Created: reportNow.Add(-48 * time.Hour).Unix()},
		}
		svc := newTestReportingService(gateway, 2)

		totals, err := svc.CalculateLessonTotal(ctx)
		require.NoError(t, err)

		assert.Equal(t, int64(1300), totals.PaymentTotal)
		assert.Equal(t, int64(40), totals.FeeTotal)
		assert.Equal(t, int64(1260), totals.NetTotal)

		require.Len(t, gateway.Windows, 2)
		assert.Equal(t, reportNow.Add(-36*time.Hour).Unix(), gateway.Windows[0].CreatedGTE)
		assert.Equal(t, "", gateway.Windows[0].StartingAfter)
		assert.Equal(t, "txn_2", gateway.Windows[1].StartingAfter)
	})

	t.Run("Two lesson payments", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.BalanceTransactions = []*stripe.BalanceTransaction{
			{ID: "txn_1", Amount: 1000, Fee: 30, Created: recent},
			{ID: "txn_2", Amount: 500, Fee: 10, Created: recent},
		}
		svc := newTestReportingService(gateway, 100)

		totals, err := svc.CalculateLessonTotal(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), totals.PaymentTotal)
		assert.Equal(t, int64(40), totals.FeeTotal)
		assert.Equal(t, int64(1460), totals.NetTotal)
	})

	t.Run("Page error", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.BalanceTransactions = []*stripe.BalanceTransaction{
			{ID: "txn_1", Amount: 1000, Fee: 30, Created: recent},
			{ID: "txn_2", Amount: 500, Fee: 10, Created: recent},
		}
		gateway.PageErrors[2] = errors.New("rate limited")
		svc := newTestReportingService(gateway, 1)

		totals, err := svc.CalculateLessonTotal(ctx)
		assert.Error(t, err)
		assert.Nil(t, totals)
	})
}

func TestFindCustomersWithFailedPayments(t *testing.T) {
	ctx := context.Background()
	created := reportNow.Add(-2 * time.Hour).Unix()

	t.Run("Included when the failing method is still first", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada Lovelace", "ada@example.com")
		gateway.AttachPaymentMethod("cus_1", "pm_1", "visa", "0341")
		gateway.IntentLedger = []*stripe.PaymentIntent{failedIntent("pi_1", "cus_1", "pm_1", created)}
		svc := newTestReportingService(gateway, 100)

		reports, err := svc.FindCustomersWithFailedPayments(ctx)
		require.NoError(t, err)
		require.Len(t, reports, 1)

		report := reports[0]
		assert.Equal(t, "cus_1", report.Customer.ID)
		assert.Equal(t, "ada@example.com", report.Customer.Email)
		assert.Equal(t, "Ada Lovelace", report.Customer.Name)
		assert.Equal(t, created, report.PaymentIntent.Created)
		assert.Equal(t, "Lesson on Feb 25th", report.PaymentIntent.Description)
		assert.Equal(t, "failed", report.PaymentIntent.Status)
		assert.Equal(t, "insufficient_funds", report.PaymentIntent.Error)
		assert.Equal(t, "0341", report.PaymentMethod.Last4)
		assert.Equal(t, "visa", report.PaymentMethod.Brand)
	})

	t.Run("Excluded when a newer method is first", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada Lovelace", "ada@example.com")
		gateway.AttachPaymentMethod("cus_1", "pm_1", "visa", "0341")
		gateway.AttachPaymentMethod("cus_1", "pm_2", "mastercard", "4444")
		gateway.IntentLedger = []*stripe.PaymentIntent{failedIntent("pi_1", "cus_1", "pm_1", created)}
		svc := newTestReportingService(gateway, 100)

		reports, err := svc.FindCustomersWithFailedPayments(ctx)
		require.NoError(t, err)
		assert.NotNil(t, reports)
		assert.Empty(t, reports)
	})

	t.Run("Other statuses are ignored", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada Lovelace", "ada@example.com")
		gateway.AttachPaymentMethod("cus_1", "pm_1", "visa", "0341")

		succeeded := failedIntent("pi_ok", "cus_1", "pm_1", created)
		succeeded.Status = stripe.PaymentIntentStatusSucceeded
		noError := failedIntent("pi_new", "cus_1", "pm_1", created)
		noError.LastPaymentError = nil
		gateway.IntentLedger = []*stripe.PaymentIntent{succeeded, noError}
		svc := newTestReportingService(gateway, 100)

		reports, err := svc.FindCustomersWithFailedPayments(ctx)
		require.NoError(t, err)
		assert.Empty(t, reports)
		assert.Zero(t, gateway.PaymentMethodCalls["cus_1"])
	})

	t.Run("Payment methods are looked up once per customer", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada Lovelace", "ada@example.com")
		gateway.AttachPaymentMethod("cus_1", "pm_1", "visa", "0341")
		gateway.IntentLedger = []*stripe.PaymentIntent{
			failedIntent("pi_1", "cus_1", "pm_1", created),
			failedIntent("pi_2", "cus_1", "pm_1", created+60),
		}
		svc := newTestReportingService(gateway, 1)

		reports, err := svc.FindCustomersWithFailedPayments(ctx)
		require.NoError(t, err)
		assert.Len(t, reports, 2)
		assert.Equal(t, 1, gateway.PaymentMethodCalls["cus_1"])
	})

	t.Run("Lookup failure", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada Lovelace", "ada@example.com")
		gateway.IntentLedger = []*stripe.PaymentIntent{failedIntent("pi_1", "cus_1", "pm_1", created)}
		gateway.Errors["ListCustomerPaymentMethods"] = processortest.ProviderError(stripe.ErrorCodeResourceMissing, "No such customer")
		svc := newTestReportingService(gateway, 100)

		reports, err := svc.FindCustomersWithFailedPayments(ctx)
		assert.Error(t, err)
		assert.Nil(t, reports)
	})
}
