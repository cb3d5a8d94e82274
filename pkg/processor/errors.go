package processor

import (
	"errors"

	"github.com/stripe/stripe-go/v76"
)

// AsProviderError unwraps the processor's own error object, if err carries one
func AsProviderError(err error) (*stripe.Error, bool) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr, true
	}
	return nil, false
}

// ErrorDetails extracts the code and message returned by the processor.
// Errors that did not come from the processor have an empty code.
func ErrorDetails(err error) (code string, message string) {
	if err == nil {
		return "", ""
	}
	if stripeErr, ok := AsProviderError(err); ok {
		return string(stripeErr.Code), stripeErr.Msg
	}
	return "", err.Error()
}
