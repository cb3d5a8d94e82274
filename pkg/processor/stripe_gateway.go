package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig holds the settings for the Stripe-backed gateway
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIBaseURL    string // optional, points the SDK at stripe-mock or a test server
}

// StripeGateway implements Gateway on top of the stripe-go client
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        *logrus.Logger
}

// NewStripeGateway creates a gateway with its own API client (no global stripe.Key).
// The SDK never retries: every operation is exactly one upstream call.
func NewStripeGateway(cfg StripeConfig, logger *logrus.Logger) *StripeGateway {
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig(cfg, logger)),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig(cfg, logger)),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig(cfg, logger)),
	}

	return &StripeGateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

// backendConfig returns a fresh config per backend; the SDK fills in the
// default URL of each backend type when URL is nil.
func backendConfig(cfg StripeConfig, logger *logrus.Logger) *stripe.BackendConfig {
	bc := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &sdkLogger{logger: logger},
	}
	if cfg.APIBaseURL != "" {
		bc.URL = stripe.String(cfg.APIBaseURL)
	}
	return bc
}

// sdkLogger forwards the SDK's own log lines to logrus. Per-request chatter
// is demoted to debug; the request logger already records every call.
type sdkLogger struct {
	logger *logrus.Logger
}

func (l *sdkLogger) Debugf(format string, v ...interface{}) { l.logger.Debugf(format, v...) }
func (l *sdkLogger) Infof(format string, v ...interface{})  { l.logger.Debugf(format, v...) }
func (l *sdkLogger) Warnf(format string, v ...interface{})  { l.logger.Warnf(format, v...) }
func (l *sdkLogger) Errorf(format string, v ...interface{}) { l.logger.Errorf(format, v...) }

// FindCustomersByEmail lists customers by email. Stripe's search API lags behind
// writes, so the list endpoint is used instead; it is still not a uniqueness guarantee.
func (g *StripeGateway) FindCustomersByEmail(ctx context.Context, email string) (customers []*stripe.Customer, err error) {
	defer func(start time.Time) { observe("customers.list", start, err) }(time.Now())

	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Single = true

	it := g.api.Customers.List(params)
	for it.Next() {
		customers = append(customers, it.Customer())
	}
	if err = it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list customers by email: %w", err)
	}
	return customers, nil
}

// CreateCustomer creates a customer with the first lesson stored as metadata
func (g *StripeGateway) CreateCustomer(ctx context.Context, input CustomerInput) (cus *stripe.Customer, err error) {
	defer func(start time.Time) { observe("customers.create", start, err) }(time.Now())

	params := &stripe.CustomerParams{
		Name:  stripe.String(input.Name),
		Email: stripe.String(input.Email),
	}
	params.Context = ctx
	params.AddMetadata("first_lesson", input.FirstLesson)

	cus, err = g.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"customer_id": cus.ID,
	}).Info("Customer created")

	return cus, nil
}

// GetCustomer retrieves a customer
func (g *StripeGateway) GetCustomer(ctx context.Context, customerID string) (cus *stripe.Customer, err error) {
	defer func(start time.Time) { observe("customers.retrieve", start, err) }(time.Now())

	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err = g.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve customer %s: %w", customerID, err)
	}
	return cus, nil
}

// UpdateCustomer sets the customer's name and email
func (g *StripeGateway) UpdateCustomer(ctx context.Context, customerID, name, email string) (cus *stripe.Customer, err error) {
	defer func(start time.Time) { observe("customers.update", start, err) }(time.Now())

	params := &stripe.CustomerParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
	}
	params.Context = ctx

	cus, err = g.api.Customers.Update(customerID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update customer %s: %w", customerID, err)
	}
	return cus, nil
}

// DeleteCustomer permanently deletes a customer
func (g *StripeGateway) DeleteCustomer(ctx context.Context, customerID string) (err error) {
	defer func(start time.Time) { observe("customers.delete", start, err) }(time.Now())

	params := &stripe.CustomerParams{}
	params.Context = ctx

	if _, err = g.api.Customers.Del(customerID, params); err != nil {
		return fmt.Errorf("failed to delete customer %s: %w", customerID, err)
	}

	g.logger.WithField("customer_id", customerID).Info("Customer deleted")
	return nil
}

// CreateSetupIntent starts a card setup flow for the customer
func (g *StripeGateway) CreateSetupIntent(ctx context.Context, customerID string) (si *stripe.SetupIntent, err error) {
	defer func(start time.Time) { observe("setup_intents.create", start, err) }(time.Now())

	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx

	si, err = g.api.SetupIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create setup intent: %w", err)
	}
	return si, nil
}

// ListCustomerPaymentMethods returns the first page of the customer's payment methods
func (g *StripeGateway) ListCustomerPaymentMethods(ctx context.Context, customerID string, limit int64, expandCustomer bool) (methods []*stripe.PaymentMethod, err error) {
	defer func(start time.Time) { observe("customers.list_payment_methods", start, err) }(time.Now())

	params := &stripe.CustomerListPaymentMethodsParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)
	params.Single = true
	if expandCustomer {
		params.AddExpand("data.customer")
	}

	it := g.api.Customers.ListPaymentMethods(params)
	for it.Next() {
		methods = append(methods, it.PaymentMethod())
	}
	if err = it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payment methods for %s: %w", customerID, err)
	}
	return methods, nil
}

// GetPaymentMethod retrieves a payment method
func (g *StripeGateway) GetPaymentMethod(ctx context.Context, paymentMethodID string) (pm *stripe.PaymentMethod, err error) {
	defer func(start time.Time) { observe("payment_methods.retrieve", start, err) }(time.Now())

	params := &stripe.PaymentMethodParams{}
	params.Context = ctx

	pm, err = g.api.PaymentMethods.Get(paymentMethodID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment method %s: %w", paymentMethodID, err)
	}
	return pm, nil
}

// UpdatePaymentMethodBilling sets the billing name and email on a payment method
func (g *StripeGateway) UpdatePaymentMethodBilling(ctx context.Context, paymentMethodID, name, email string) (pm *stripe.PaymentMethod, err error) {
	defer func(start time.Time) { observe("payment_methods.update", start, err) }(time.Now())

	params := &stripe.PaymentMethodParams{
		BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
			Name:  stripe.String(name),
			Email: stripe.String(email),
		},
	}
	params.Context = ctx

	pm, err = g.api.PaymentMethods.Update(paymentMethodID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment method %s: %w", paymentMethodID, err)
	}
	return pm, nil
}

// CreatePaymentIntent creates an unconfirmed payment intent
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, input PaymentIntentInput) (pi *stripe.PaymentIntent, err error) {
	defer func(start time.Time) { observe("payment_intents.create", start, err) }(time.Now())

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(input.Amount),
		Currency:    stripe.String(input.Currency),
		Customer:    stripe.String(input.CustomerID),
		Description: stripe.String(input.Description),
	}
	if input.ManualCapture {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx

	pi, err = g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"payment_intent_id": pi.ID,
		"customer_id":       input.CustomerID,
		"amount":            input.Amount,
		"currency":          input.Currency,
	}).Info("Payment intent created")

	return pi, nil
}

// ConfirmPaymentIntent confirms a payment intent with the given payment method
func (g *StripeGateway) ConfirmPaymentIntent(ctx context.Context, paymentIntentID, paymentMethodID, returnURL string) (pi *stripe.PaymentIntent, err error) {
	defer func(start time.Time) { observe("payment_intents.confirm", start, err) }(time.Now())

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
		ReturnURL:     stripe.String(returnURL),
	}
	params.Context = ctx

	pi, err = g.api.PaymentIntents.Confirm(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment intent %s: %w", paymentIntentID, err)
	}
	return pi, nil
}

// CapturePaymentIntent captures an authorized payment intent
func (g *StripeGateway) CapturePaymentIntent(ctx context.Context, paymentIntentID string, amount *int64) (pi *stripe.PaymentIntent, err error) {
	defer func(start time.Time) { observe("payment_intents.capture", start, err) }(time.Now())

	params := &stripe.PaymentIntentCaptureParams{}
	if amount != nil {
		params.AmountToCapture = stripe.Int64(*amount)
	}
	params.Context = ctx

	pi, err = g.api.PaymentIntents.Capture(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to capture payment intent %s: %w", paymentIntentID, err)
	}
	return pi, nil
}

// GetPaymentIntent retrieves a payment intent
func (g *StripeGateway) GetPaymentIntent(ctx context.Context, paymentIntentID string) (pi *stripe.PaymentIntent, err error) {
	defer func(start time.Time) { observe("payment_intents.retrieve", start, err) }(time.Now())

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err = g.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent %s: %w", paymentIntentID, err)
	}
	return pi, nil
}

// ListCustomerPaymentIntents returns the first page of the customer's payment intents
func (g *StripeGateway) ListCustomerPaymentIntents(ctx context.Context, customerID string, limit int64) (intents []*stripe.PaymentIntent, err error) {
	defer func(start time.Time) { observe("payment_intents.list", start, err) }(time.Now())

	params := &stripe.PaymentIntentListParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)
	params.Single = true

	it := g.api.PaymentIntents.List(params)
	for it.Next() {
		intents = append(intents, it.PaymentIntent())
	}
	if err = it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payment intents for %s: %w", customerID, err)
	}
	return intents, nil
}

// CreateRefund refunds a charge
func (g *StripeGateway) CreateRefund(ctx context.Context, input RefundInput) (re *stripe.Refund, err error) {
	defer func(start time.Time) { observe("refunds.create", start, err) }(time.Now())

	params := &stripe.RefundParams{
		Charge: stripe.String(input.ChargeID),
	}
	if input.Amount != nil {
		params.Amount = stripe.Int64(*input.Amount)
	}
	if input.Reason != "" {
		params.Reason = stripe.String(input.Reason)
	}
	params.Context = ctx

	re, err = g.api.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to refund charge %s: %w", input.ChargeID, err)
	}

	g.logger.WithFields(logrus.Fields{
		"refund_id": re.ID,
		"charge_id": input.ChargeID,
	}).Info("Refund created")

	return re, nil
}

// ListBalanceTransactions fetches one page of balance transactions
func (g *StripeGateway) ListBalanceTransactions(ctx context.Context, window ListWindow) (page *Page[*stripe.BalanceTransaction], err error) {
	defer func(start time.Time) { observe("balance_transactions.list", start, err) }(time.Now())

	params := &stripe.BalanceTransactionListParams{
		CreatedRange: &stripe.RangeQueryParams{GreaterThanOrEqual: window.CreatedGTE},
	}
	applyWindow(ctx, &params.ListParams, window)

	it := g.api.BalanceTransactions.List(params)
	page = &Page[*stripe.BalanceTransaction]{}
	for it.Next() {
		page.Data = append(page.Data, it.BalanceTransaction())
	}
	if err = it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list balance transactions: %w", err)
	}
	page.HasMore = it.Meta().HasMore
	return page, nil
}

// ListPaymentIntents fetches one page of payment intents
func (g *StripeGateway) ListPaymentIntents(ctx context.Context, window ListWindow) (page *Page[*stripe.PaymentIntent], err error) {
	defer func(start time.Time) { observe("payment_intents.list", start, err) }(time.Now())

	params := &stripe.PaymentIntentListParams{
		CreatedRange: &stripe.RangeQueryParams{GreaterThanOrEqual: window.CreatedGTE},
	}
	applyWindow(ctx, &params.ListParams, window)

	it := g.api.PaymentIntents.List(params)
	page = &Page[*stripe.PaymentIntent]{}
	for it.Next() {
		page.Data = append(page.Data, it.PaymentIntent())
	}
	if err = it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payment intents: %w", err)
	}
	page.HasMore = it.Meta().HasMore
	return page, nil
}

// ConstructWebhookEvent verifies the Stripe-Signature header. Without a configured
// secret the payload is decoded unverified, which is only acceptable in development.
func (g *StripeGateway) ConstructWebhookEvent(payload []byte, signature string) (stripe.Event, error) {
	if g.webhookSecret == "" {
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return stripe.Event{}, fmt.Errorf("invalid webhook payload: %w", err)
		}
		return event, nil
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return event, nil
}

// applyWindow fills the paging fields; Single stops the SDK from following pages on its own
func applyWindow(ctx context.Context, params *stripe.ListParams, window ListWindow) {
	params.Context = ctx
	params.Limit = stripe.Int64(window.Limit)
	params.Single = true
	if window.StartingAfter != "" {
		params.StartingAfter = stripe.String(window.StartingAfter)
	}
}
