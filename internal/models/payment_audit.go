package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventAuthorized             PaymentEventType = "payment_authorized"
	PaymentEventAuthorizationFailed    PaymentEventType = "payment_authorization_failed"
	PaymentEventCaptured               PaymentEventType = "payment_captured"
	PaymentEventCaptureFailed          PaymentEventType = "payment_capture_failed"
	PaymentEventRefundCreated          PaymentEventType = "refund_created"
	PaymentEventRefundFailed           PaymentEventType = "refund_failed"
	PaymentEventAccountDeleted         PaymentEventType = "account_deleted"
	PaymentEventAccountDeletionBlocked PaymentEventType = "account_deletion_blocked"
	PaymentEventWebhookReceived        PaymentEventType = "webhook_received"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend       PaymentEventSource = "backend"
	PaymentSourceStripeWebhook PaymentEventSource = "stripe_webhook"
	PaymentSourceScheduler     PaymentEventSource = "scheduler"
)

// PaymentAudit is an append-only record of a money-moving or account-destroying
// operation. It is never read back to make payment decisions; the processor
// stays the source of truth.
type PaymentAudit struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Processor references
	CustomerID      *string `json:"customer_id,omitempty" db:"customer_id"`
	PaymentIntentID *string `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	ObjectID        *string `json:"object_id,omitempty" db:"object_id"` // refund, charge or event id

	// Amounts in minor units
	Amount   *int64  `json:"amount,omitempty" db:"amount"`
	Currency *string `json:"currency,omitempty" db:"currency"`

	PaymentStatus *string `json:"payment_status,omitempty" db:"payment_status"`

	// Error tracking
	ErrorCode    *string `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	Details JSONB `json:"details,omitempty" db:"details"`

	// Request metadata
	IPAddress     *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent     *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceInfo    JSONB   `json:"device_info,omitempty" db:"device_info"`
	CorrelationID *string `json:"correlation_id,omitempty" db:"correlation_id"`

	ProcessingTimeMs *int      `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetCustomer sets the processor customer id
func (pa *PaymentAudit) SetCustomer(customerID string) *PaymentAudit {
	if customerID != "" {
		pa.CustomerID = &customerID
	}
	return pa
}

// SetPaymentIntent sets the processor payment intent id
func (pa *PaymentAudit) SetPaymentIntent(paymentIntentID string) *PaymentAudit {
	if paymentIntentID != "" {
		pa.PaymentIntentID = &paymentIntentID
	}
	return pa
}

// SetObject sets the id of the refund, charge or event involved
func (pa *PaymentAudit) SetObject(objectID string) *PaymentAudit {
	if objectID != "" {
		pa.ObjectID = &objectID
	}
	return pa
}

// SetAmount sets the amount in minor units
func (pa *PaymentAudit) SetAmount(amount int64, currency string) *PaymentAudit {
	pa.Amount = &amount
	if currency != "" {
		pa.Currency = &currency
	}
	return pa
}

// SetPaymentStatus sets the payment status reported by the processor
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	if status != "" {
		pa.PaymentStatus = &status
	}
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(code, message string) *PaymentAudit {
	if code != "" {
		pa.ErrorCode = &code
	}
	pa.ErrorMessage = &message
	return pa
}

// SetDetails stores extra event details
func (pa *PaymentAudit) SetDetails(details map[string]interface{}) *PaymentAudit {
	pa.Details = JSONB(details)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent, correlationID string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	if correlationID != "" {
		pa.CorrelationID = &correlationID
	}
	return pa
}

// SetDeviceInfo stores the parsed user agent
func (pa *PaymentAudit) SetDeviceInfo(info map[string]interface{}) *PaymentAudit {
	pa.DeviceInfo = JSONB(info)
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}
