package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/internal/middleware"
	"github.com/lessonbook/payments-backend/internal/services"
	"github.com/lessonbook/payments-backend/internal/utils"
	"github.com/lessonbook/payments-backend/pkg/processor"
)

// customerExistsMessage is the text clients match on for duplicate emails
const customerExistsMessage = "Customer email already exists!"

// ErrorDetail is the body of every structured error
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform {error:{code?,message}} shape
type ErrorResponse struct {
	Error           ErrorDetail `json:"error"`
	PaymentIntentID string      `json:"payment_intent_id,omitempty"`
}

// describeError picks the client-facing code and message for a service error
func describeError(err error) (string, string) {
	var precondition *services.PreconditionError
	if errors.As(err, &precondition) {
		return precondition.Code, precondition.Message
	}
	if errors.Is(err, services.ErrCustomerExists) {
		return "customer_exists", customerExistsMessage
	}
	return processor.ErrorDetails(err)
}

// respondBadRequest answers 400 with the structured error shape
func respondBadRequest(c *gin.Context, err error) {
	code, message := describeError(err)
	c.Error(err)
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// respondInvalidBody answers 400 for a body that failed binding
func respondInvalidBody(c *gin.Context, err error) {
	c.Error(err)
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "invalid_request", Message: err.Error()}})
}

// respondInternalError answers 500. Processor errors are passed through as the
// processor serialized them; anything else becomes {error:{message}}.
func respondInternalError(c *gin.Context, err error) {
	c.Error(err)
	if stripeErr, ok := processor.AsProviderError(err); ok {
		c.JSON(http.StatusInternalServerError, stripeErr)
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{Message: err.Error()}})
}

// isClientError reports errors caused by the request rather than by the processor or the server
func isClientError(err error) bool {
	var precondition *services.PreconditionError
	return errors.As(err, &precondition) || errors.Is(err, services.ErrCustomerExists)
}

// requestMeta captures the caller details stored with audit entries
func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
		RequestID: middleware.GetRequestID(c),
		StartedAt: time.Now(),
	}
}
