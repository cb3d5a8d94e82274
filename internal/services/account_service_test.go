package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lessonbook/payments-backend/internal/models"
	"github.com/lessonbook/payments-backend/pkg/processor/processortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func newTestAccountService(gateway *processortest.FakeGateway) *AccountService {
	return NewAccountService(gateway, 3, testLogger())
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("Blocked by an uncaptured payment", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada", "ada@example.com")
		gateway.AddPaymentIntent(&stripe.PaymentIntent{
			ID:       "pi_hold",
			Status:   stripe.PaymentIntentStatusRequiresCapture,
			Customer: &stripe.Customer{ID: "cus_1"},
		})
		svc := newTestAccountService(gateway)

		result, err := svc.DeleteAccount(ctx, "cus_1")
		require.NoError(t, err)
		assert.False(t, result.Deleted)
		assert.Equal(t, []string{"pi_hold"}, result.UncapturedPayments)
		assert.Empty(t, gateway.DeletedCustomers)
		assert.Contains(t, gateway.Customers, "cus_1")
	})

	t.Run("Deleted when nothing is pending", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada", "ada@example.com")
		gateway.AddPaymentIntent(&stripe.PaymentIntent{
			ID:       "pi_done",
			Status:   stripe.PaymentIntentStatusSucceeded,
			Customer: &stripe.Customer{ID: "cus_1"},
		})
		svc := newTestAccountService(gateway)

		result, err := svc.DeleteAccount(ctx, "cus_1")
		require.NoError(t, err)
		assert.True(t, result.Deleted)
		assert.Empty(t, result.UncapturedPayments)
		assert.Equal(t, []string{"cus_1"}, gateway.DeletedCustomers)
	})

	t.Run("Unknown customer", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		svc := newTestAccountService(gateway)

		result, err := svc.DeleteAccount(ctx, "cus_missing")
		assert.Nil(t, result)
		assert.Error(t, err)
	})
}

func TestGetBilledPaymentMethod(t *testing.T) {
	ctx := context.Background()

	t.Run("Copies customer details onto billing", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada Lovelace", "ada@example.com")
		gateway.AttachPaymentMethod("cus_1", "pm_1", "visa", "4242")
		svc := newTestAccountService(gateway)

		pm, err := svc.GetBilledPaymentMethod(ctx, "pm_1")
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", pm.BillingDetails.Name)
		assert.Equal(t, "ada@example.com", pm.BillingDetails.Email)
	})

	t.Run("Detached method", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.PaymentMethods["pm_loose"] = &stripe.PaymentMethod{ID: "pm_loose"}
		svc := newTestAccountService(gateway)

		_, err := svc.GetBilledPaymentMethod(ctx, "pm_loose")
		var precondition *PreconditionError
		require.True(t, errors.As(err, &precondition))
		assert.Equal(t, "payment_method_not_attached", precondition.Code)
	})
}

func TestGetFirstPaymentMethod(t *testing.T) {
	ctx := context.Background()

	gateway := processortest.NewFakeGateway()
	gateway.AddCustomer("cus_1", "Ada Lovelace", "ada@example.com")
	gateway.AttachPaymentMethod("cus_1", "pm_old", "visa", "4242")
	gateway.AttachPaymentMethod("cus_1", "pm_new", "amex", "0005")
	gateway.AddCustomer("cus_2", "Empty", "empty@example.com")
	svc := newTestAccountService(gateway)

	pm, err := svc.GetFirstPaymentMethod(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_new", pm.ID)
	require.NotNil(t, pm.Customer)
	assert.Equal(t, "ada@example.com", pm.Customer.Email)

	_, err = svc.GetFirstPaymentMethod(ctx, "cus_2")
	var precondition *PreconditionError
	require.True(t, errors.As(err, &precondition))
	assert.Equal(t, "no payment methods found for cus_2", precondition.Message)
}

func TestUpdatePaymentDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("Name change updates customer and billing", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada", "ada@example.com")
		gateway.AttachPaymentMethod("cus_1", "pm_1", "visa", "4242")
		svc := newTestAccountService(gateway)

		si, err := svc.UpdatePaymentDetails(ctx, "cus_1", models.UpdatePaymentDetailsRequest{
			Name:  "Ada Lovelace",
			Email: "ada@example.com",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, si.ClientSecret)

		assert.Equal(t, "Ada Lovelace", gateway.Customers["cus_1"].Name)
		assert.Equal(t, "Ada Lovelace", gateway.PaymentMethods["pm_1"].BillingDetails.Name)
		assert.Equal(t, "ada@example.com", gateway.PaymentMethods["pm_1"].BillingDetails.Email)
	})

	t.Run("Email taken by another customer", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada", "ada@example.com")
		gateway.AddCustomer("cus_2", "Grace", "grace@example.com")
		svc := newTestAccountService(gateway)

		_, err := svc.UpdatePaymentDetails(ctx, "cus_1", models.UpdatePaymentDetailsRequest{Email: "grace@example.com"})
		require.True(t, errors.Is(err, ErrCustomerExists))
		assert.Equal(t, "ada@example.com", gateway.Customers["cus_1"].Email)
		assert.Empty(t, gateway.SetupIntents)
	})

	t.Run("No method on file skips billing update", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada", "ada@example.com")
		svc := newTestAccountService(gateway)

		si, err := svc.UpdatePaymentDetails(ctx, "cus_1", models.UpdatePaymentDetailsRequest{Email: "ada@lovelace.dev"})
		require.NoError(t, err)
		require.NotNil(t, si)
		assert.Equal(t, "ada@lovelace.dev", gateway.Customers["cus_1"].Email)
		assert.Equal(t, "Ada", gateway.Customers["cus_1"].Name)
	})

	t.Run("Unchanged details only issue a setup intent", func(t *testing.T) {
		gateway := processortest.NewFakeGateway()
		gateway.AddCustomer("cus_1", "Ada", "ada@example.com")
		gateway.AttachPaymentMethod("cus_1", "pm_1", "visa", "4242")
		gateway.Errors["UpdateCustomer"] = errors.New("must not be called")
		svc := newTestAccountService(gateway)

		si, err := svc.UpdatePaymentDetails(ctx, "cus_1", models.UpdatePaymentDetailsRequest{Name: "Ada", Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Len(t, gateway.SetupIntents, 1)
		assert.Equal(t, "cus_1", si.Customer.ID)
		assert.Zero(t, gateway.PaymentMethodCalls["cus_1"])
	})
}
