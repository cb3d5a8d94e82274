// Package processortest provides an in-memory processor.Gateway for tests.
package processortest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/lessonbook/payments-backend/pkg/processor"
	"github.com/stripe/stripe-go/v76"
)

// FakeGateway is an in-memory processor.Gateway. Fields may be seeded directly
// before use; Errors injects a failure for the named operation.
type FakeGateway struct {
	mu sync.Mutex

	Customers           map[string]*stripe.Customer
	PaymentMethods      map[string]*stripe.PaymentMethod
	CustomerMethods     map[string][]string // customer id -> payment method ids, first = most recent
	PaymentIntents      map[string]*stripe.PaymentIntent
	BalanceTransactions []*stripe.BalanceTransaction
	IntentLedger        []*stripe.PaymentIntent // ordered list served by ListPaymentIntents

	// Errors maps an operation name (e.g. "CreateCustomer") to the error it returns
	Errors map[string]error
	// PageErrors fails ListBalanceTransactions/ListPaymentIntents on the given 1-based call
	PageErrors map[int]error

	// Recorded calls
	Windows            []processor.ListWindow
	CreatedCustomers   []processor.CustomerInput
	DeletedCustomers   []string
	Captures           []CaptureCall
	Refunds            []processor.RefundInput
	PaymentMethodCalls map[string]int
	SetupIntents       []*stripe.SetupIntent

	seq int
}

// CaptureCall records one capture request
type CaptureCall struct {
	PaymentIntentID string
	Amount          *int64
}

// NewFakeGateway creates an empty fake
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Customers:          map[string]*stripe.Customer{},
		PaymentMethods:     map[string]*stripe.PaymentMethod{},
		CustomerMethods:    map[string][]string{},
		PaymentIntents:     map[string]*stripe.PaymentIntent{},
		Errors:             map[string]error{},
		PageErrors:         map[int]error{},
		PaymentMethodCalls: map[string]int{},
	}
}

// ProviderError builds an error shaped like the processor's own errors
func ProviderError(code stripe.ErrorCode, message string) error {
	return &stripe.Error{
		Code:           code,
		Msg:            message,
		Type:           stripe.ErrorTypeInvalidRequest,
		HTTPStatusCode: http.StatusBadRequest,
	}
}

// AddCustomer seeds a customer
func (f *FakeGateway) AddCustomer(id, name, email string) *stripe.Customer {
	f.mu.Lock()
	defer f.mu.Unlock()

	cus := &stripe.Customer{ID: id, Object: "customer", Name: name, Email: email}
	f.Customers[id] = cus
	return cus
}

// AttachPaymentMethod seeds a card and makes it the customer's first listed method
func (f *FakeGateway) AttachPaymentMethod(customerID, paymentMethodID, brand, last4 string) *stripe.PaymentMethod {
	f.mu.Lock()
	defer f.mu.Unlock()

	pm := &stripe.PaymentMethod{
		ID:       paymentMethodID,
		Object:   "payment_method",
		Type:     stripe.PaymentMethodTypeCard,
		Customer: &stripe.Customer{ID: customerID},
		Card: &stripe.PaymentMethodCard{
			Brand: stripe.PaymentMethodCardBrand(brand),
			Last4: last4,
		},
		BillingDetails: &stripe.PaymentMethodBillingDetails{},
	}
	f.PaymentMethods[paymentMethodID] = pm
	f.CustomerMethods[customerID] = append([]string{paymentMethodID}, f.CustomerMethods[customerID]...)
	return pm
}

// AddPaymentIntent seeds a payment intent
func (f *FakeGateway) AddPaymentIntent(pi *stripe.PaymentIntent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PaymentIntents[pi.ID] = pi
}

func (f *FakeGateway) fail(op string) error {
	if err, ok := f.Errors[op]; ok {
		return err
	}
	return nil
}

func (f *FakeGateway) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_fake%d", prefix, f.seq)
}

func notFound(kind, id string) error {
	return &stripe.Error{
		Code:           stripe.ErrorCodeResourceMissing,
		Msg:            fmt.Sprintf("No such %s: '%s'", kind, id),
		Type:           stripe.ErrorTypeInvalidRequest,
		HTTPStatusCode: http.StatusNotFound,
	}
}

// clone round-trips through JSON so callers never share the stored pointer
func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func (f *FakeGateway) FindCustomersByEmail(_ context.Context, email string) ([]*stripe.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("FindCustomersByEmail"); err != nil {
		return nil, err
	}

	var out []*stripe.Customer
	for _, cus := range f.Customers {
		if cus.Email == email {
			out = append(out, clone(cus))
		}
	}
	return out, nil
}

func (f *FakeGateway) CreateCustomer(_ context.Context, input processor.CustomerInput) (*stripe.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateCustomer"); err != nil {
		return nil, err
	}

	cus := &stripe.Customer{
		ID:       f.nextID("cus"),
		Object:   "customer",
		Name:     input.Name,
		Email:    input.Email,
		Metadata: map[string]string{"first_lesson": input.FirstLesson},
	}
	f.Customers[cus.ID] = cus
	f.CreatedCustomers = append(f.CreatedCustomers, input)
	return clone(cus), nil
}

func (f *FakeGateway) GetCustomer(_ context.Context, customerID string) (*stripe.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetCustomer"); err != nil {
		return nil, err
	}

	cus, ok := f.Customers[customerID]
	if !ok {
		return nil, notFound("customer", customerID)
	}
	return clone(cus), nil
}

func (f *FakeGateway) UpdateCustomer(_ context.Context, customerID, name, email string) (*stripe.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateCustomer"); err != nil {
		return nil, err
	}

	cus, ok := f.Customers[customerID]
	if !ok {
		return nil, notFound("customer", customerID)
	}
	cus.Name = name
	cus.Email = email
	return clone(cus), nil
}

func (f *FakeGateway) DeleteCustomer(_ context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteCustomer"); err != nil {
		return err
	}

	if _, ok := f.Customers[customerID]; !ok {
		return notFound("customer", customerID)
	}
	delete(f.Customers, customerID)
	f.DeletedCustomers = append(f.DeletedCustomers, customerID)
	return nil
}

func (f *FakeGateway) CreateSetupIntent(_ context.Context, customerID string) (*stripe.SetupIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateSetupIntent"); err != nil {
		return nil, err
	}

	id := f.nextID("seti")
	si := &stripe.SetupIntent{
		ID:                 id,
		Object:             "setup_intent",
		ClientSecret:       id + "_secret",
		Customer:           &stripe.Customer{ID: customerID},
		PaymentMethodTypes: []string{"card"},
		Status:             stripe.SetupIntentStatusRequiresPaymentMethod,
	}
	f.SetupIntents = append(f.SetupIntents, si)
	return clone(si), nil
}

func (f *FakeGateway) ListCustomerPaymentMethods(_ context.Context, customerID string, limit int64, expandCustomer bool) ([]*stripe.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PaymentMethodCalls[customerID]++
	if err := f.fail("ListCustomerPaymentMethods"); err != nil {
		return nil, err
	}

	var out []*stripe.PaymentMethod
	for _, id := range f.CustomerMethods[customerID] {
		if int64(len(out)) >= limit {
			break
		}
		pm := clone(f.PaymentMethods[id])
		if expandCustomer {
			if cus, ok := f.Customers[customerID]; ok {
				pm.Customer = clone(cus)
			}
		}
		out = append(out, pm)
	}
	return out, nil
}

func (f *FakeGateway) GetPaymentMethod(_ context.Context, paymentMethodID string) (*stripe.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetPaymentMethod"); err != nil {
		return nil, err
	}

	pm, ok := f.PaymentMethods[paymentMethodID]
	if !ok {
		return nil, notFound("payment_method", paymentMethodID)
	}
	return clone(pm), nil
}

func (f *FakeGateway) UpdatePaymentMethodBilling(_ context.Context, paymentMethodID, name, email string) (*stripe.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdatePaymentMethodBilling"); err != nil {
		return nil, err
	}

	pm, ok := f.PaymentMethods[paymentMethodID]
	if !ok {
		return nil, notFound("payment_method", paymentMethodID)
	}
	if pm.BillingDetails == nil {
		pm.BillingDetails = &stripe.PaymentMethodBillingDetails{}
	}
	pm.BillingDetails.Name = name
	pm.BillingDetails.Email = email
	return clone(pm), nil
}

func (f *FakeGateway) CreatePaymentIntent(_ context.Context, input processor.PaymentIntentInput) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreatePaymentIntent"); err != nil {
		return nil, err
	}

	captureMethod := stripe.PaymentIntentCaptureMethodAutomatic
	if input.ManualCapture {
		captureMethod = stripe.PaymentIntentCaptureMethodManual
	}
	pi := &stripe.PaymentIntent{
		ID:            f.nextID("pi"),
		Object:        "payment_intent",
		Amount:        input.Amount,
		Currency:      stripe.Currency(input.Currency),
		Customer:      &stripe.Customer{ID: input.CustomerID},
		Description:   input.Description,
		CaptureMethod: captureMethod,
		Metadata:      input.Metadata,
		Status:        stripe.PaymentIntentStatusRequiresPaymentMethod,
	}
	f.PaymentIntents[pi.ID] = pi
	return clone(pi), nil
}

func (f *FakeGateway) ConfirmPaymentIntent(_ context.Context, paymentIntentID, paymentMethodID, _ string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ConfirmPaymentIntent"); err != nil {
		return nil, err
	}

	pi, ok := f.PaymentIntents[paymentIntentID]
	if !ok {
		return nil, notFound("payment_intent", paymentIntentID)
	}
	pi.PaymentMethod = &stripe.PaymentMethod{ID: paymentMethodID}
	pi.LatestCharge = &stripe.Charge{ID: "ch_" + pi.ID}
	if pi.CaptureMethod == stripe.PaymentIntentCaptureMethodManual {
		pi.Status = stripe.PaymentIntentStatusRequiresCapture
		pi.AmountCapturable = pi.Amount
	} else {
		pi.Status = stripe.PaymentIntentStatusSucceeded
		pi.AmountReceived = pi.Amount
	}
	return clone(pi), nil
}

func (f *FakeGateway) CapturePaymentIntent(_ context.Context, paymentIntentID string, amount *int64) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Captures = append(f.Captures, CaptureCall{PaymentIntentID: paymentIntentID, Amount: amount})
	if err := f.fail("CapturePaymentIntent"); err != nil {
		return nil, err
	}

	pi, ok := f.PaymentIntents[paymentIntentID]
	if !ok {
		return nil, notFound("payment_intent", paymentIntentID)
	}
	if pi.Status != stripe.PaymentIntentStatusRequiresCapture {
		return nil, ProviderError(stripe.ErrorCodePaymentIntentUnexpectedState,
			fmt.Sprintf("This PaymentIntent could not be captured because it has a status of %s.", pi.Status))
	}
	received := pi.Amount
	if amount != nil {
		received = *amount
	}
	pi.AmountReceived = received
	pi.AmountCapturable = 0
	pi.Status = stripe.PaymentIntentStatusSucceeded
	return clone(pi), nil
}

func (f *FakeGateway) GetPaymentIntent(_ context.Context, paymentIntentID string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetPaymentIntent"); err != nil {
		return nil, err
	}

	pi, ok := f.PaymentIntents[paymentIntentID]
	if !ok {
		return nil, notFound("payment_intent", paymentIntentID)
	}
	return clone(pi), nil
}

func (f *FakeGateway) ListCustomerPaymentIntents(_ context.Context, customerID string, limit int64) ([]*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListCustomerPaymentIntents"); err != nil {
		return nil, err
	}

	var out []*stripe.PaymentIntent
	for _, pi := range f.PaymentIntents {
		if int64(len(out)) >= limit {
			break
		}
		if pi.Customer != nil && pi.Customer.ID == customerID {
			out = append(out, clone(pi))
		}
	}
	return out, nil
}

func (f *FakeGateway) CreateRefund(_ context.Context, input processor.RefundInput) (*stripe.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Refunds = append(f.Refunds, input)
	if err := f.fail("CreateRefund"); err != nil {
		return nil, err
	}

	re := &stripe.Refund{
		ID:     f.nextID("re"),
		Object: "refund",
		Charge: &stripe.Charge{ID: input.ChargeID},
		Reason: stripe.RefundReason(input.Reason),
		Status: stripe.RefundStatusSucceeded,
	}
	if input.Amount != nil {
		re.Amount = *input.Amount
	}
	return re, nil
}

func (f *FakeGateway) ListBalanceTransactions(_ context.Context, window processor.ListWindow) (*processor.Page[*stripe.BalanceTransaction], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Windows = append(f.Windows, window)
	if err := f.pageError(); err != nil {
		return nil, err
	}

	data, hasMore := paginate(f.BalanceTransactions, window,
		func(bt *stripe.BalanceTransaction) string { return bt.ID },
		func(bt *stripe.BalanceTransaction) int64 { return bt.Created })
	return &processor.Page[*stripe.BalanceTransaction]{Data: data, HasMore: hasMore}, nil
}

func (f *FakeGateway) ListPaymentIntents(_ context.Context, window processor.ListWindow) (*processor.Page[*stripe.PaymentIntent], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Windows = append(f.Windows, window)
	if err := f.pageError(); err != nil {
		return nil, err
	}

	data, hasMore := paginate(f.IntentLedger, window,
		func(pi *stripe.PaymentIntent) string { return pi.ID },
		func(pi *stripe.PaymentIntent) int64 { return pi.Created })
	return &processor.Page[*stripe.PaymentIntent]{Data: data, HasMore: hasMore}, nil
}

func (f *FakeGateway) ConstructWebhookEvent(payload []byte, signature string) (stripe.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ConstructWebhookEvent"); err != nil {
		return stripe.Event{}, err
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, fmt.Errorf("invalid webhook payload: %w", err)
	}
	return event, nil
}

// pageError returns the injected error for the current list call, if any
func (f *FakeGateway) pageError() error {
	if err, ok := f.PageErrors[len(f.Windows)]; ok {
		return err
	}
	return nil
}

// paginate serves one page the way the processor does: records created at or after
// CreatedGTE, starting after the cursor record, at most Limit of them
func paginate[T any](all []T, window processor.ListWindow, idOf func(T) string, createdOf func(T) int64) ([]T, bool) {
	var matching []T
	for _, item := range all {
		if createdOf(item) >= window.CreatedGTE {
			matching = append(matching, item)
		}
	}

	start := 0
	if window.StartingAfter != "" {
		for i, item := range matching {
			if idOf(item) == window.StartingAfter {
				start = i + 1
				break
			}
		}
	}

	end := start + int(window.Limit)
	if window.Limit <= 0 || end > len(matching) {
		end = len(matching)
	}
	return matching[start:end], end < len(matching)
}

var _ processor.Gateway = (*FakeGateway)(nil)
