package services

import (
	"context"
	"time"

	"github.com/lessonbook/payments-backend/internal/models"
	"github.com/lessonbook/payments-backend/internal/utils"
	"github.com/lessonbook/payments-backend/pkg/processor"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
)

// AuditRecorder persists payment audit entries
type AuditRecorder interface {
	Record(ctx context.Context, audit *models.PaymentAudit) error
}

// LogAuditRecorder writes audit entries to the structured log when no database is configured
type LogAuditRecorder struct {
	logger *logrus.Logger
}

// NewLogAuditRecorder creates a log-only recorder
func NewLogAuditRecorder(logger *logrus.Logger) *LogAuditRecorder {
	return &LogAuditRecorder{logger: logger}
}

// Record logs the entry as a single structured line
func (r *LogAuditRecorder) Record(_ context.Context, audit *models.PaymentAudit) error {
	fields := logrus.Fields{
		"audit_id":     audit.ID,
		"event_type":   audit.EventType,
		"event_source": audit.EventSource,
	}
	addOptional(fields, "customer_id", audit.CustomerID)
	addOptional(fields, "payment_intent_id", audit.PaymentIntentID)
	addOptional(fields, "object_id", audit.ObjectID)
	addOptional(fields, "payment_status", audit.PaymentStatus)
	addOptional(fields, "error_code", audit.ErrorCode)
	addOptional(fields, "error_message", audit.ErrorMessage)
	addOptional(fields, "ip_address", audit.IPAddress)
	addOptional(fields, "correlation_id", audit.CorrelationID)
	if audit.Amount != nil {
		fields["amount"] = *audit.Amount
	}
	if len(audit.Details) > 0 {
		fields["details"] = audit.Details
	}

	r.logger.WithFields(fields).Info("Payment audit")
	return nil
}

func addOptional(fields logrus.Fields, key string, value *string) {
	if value != nil {
		fields[key] = *value
	}
}

// RequestMeta is the caller information attached to an audit entry
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
	StartedAt time.Time
}

// AuditService records money-moving and account-destroying operations.
// Entries are append-only and never read back to make payment decisions.
type AuditService struct {
	recorder AuditRecorder
	logger   *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(recorder AuditRecorder, logger *logrus.Logger) *AuditService {
	return &AuditService{
		recorder: recorder,
		logger:   logger,
	}
}

// LogAuthorization records the outcome of POST /schedule-lesson
func (s *AuditService) LogAuthorization(ctx context.Context, meta RequestMeta, customerID string, amount int64, paymentIntentID string, status stripe.PaymentIntentStatus, err error) error {
	eventType := models.PaymentEventAuthorized
	if err != nil {
		eventType = models.PaymentEventAuthorizationFailed
	}

	audit := models.NewPaymentAudit(eventType, models.PaymentSourceBackend).
		SetCustomer(customerID).
		SetPaymentIntent(paymentIntentID).
		SetAmount(amount, "").
		SetPaymentStatus(string(status))
	return s.record(ctx, meta, audit, err)
}

// LogCapture records the outcome of POST /complete-lesson-payment
func (s *AuditService) LogCapture(ctx context.Context, meta RequestMeta, paymentIntentID string, amount *int64, pi *stripe.PaymentIntent, err error) error {
	eventType := models.PaymentEventCaptured
	if err != nil {
		eventType = models.PaymentEventCaptureFailed
	}

	audit := models.NewPaymentAudit(eventType, models.PaymentSourceBackend).
		SetPaymentIntent(paymentIntentID)
	if amount != nil {
		audit.SetAmount(*amount, "")
	}
	if pi != nil {
		if pi.Customer != nil {
			audit.SetCustomer(pi.Customer.ID)
		}
		audit.SetAmount(pi.AmountReceived, string(pi.Currency)).
			SetPaymentStatus(string(pi.Status))
	}
	return s.record(ctx, meta, audit, err)
}

// LogRefund records the outcome of POST /refund-lesson
func (s *AuditService) LogRefund(ctx context.Context, meta RequestMeta, paymentIntentID string, amount *int64, refund *stripe.Refund, err error) error {
	eventType := models.PaymentEventRefundCreated
	if err != nil {
		eventType = models.PaymentEventRefundFailed
	}

	audit := models.NewPaymentAudit(eventType, models.PaymentSourceBackend).
		SetPaymentIntent(paymentIntentID)
	if amount != nil {
		audit.SetAmount(*amount, "")
	}
	if refund != nil {
		audit.SetObject(refund.ID).SetPaymentStatus(string(refund.Status))
		if refund.Amount > 0 {
			audit.SetAmount(refund.Amount, string(refund.Currency))
		}
	}
	return s.record(ctx, meta, audit, err)
}

// LogAccountDeletion records POST /delete-account, including a deletion blocked by uncaptured payments
func (s *AuditService) LogAccountDeletion(ctx context.Context, meta RequestMeta, customerID string, result *models.DeleteAccountResult, err error) error {
	audit := models.NewPaymentAudit(models.PaymentEventAccountDeleted, models.PaymentSourceBackend).
		SetCustomer(customerID)
	if result != nil && len(result.UncapturedPayments) > 0 {
		audit.EventType = models.PaymentEventAccountDeletionBlocked
		audit.SetDetails(map[string]interface{}{
			"uncaptured_payments": result.UncapturedPayments,
		})
	}
	return s.record(ctx, meta, audit, err)
}

// LogWebhook records a verified processor event
func (s *AuditService) LogWebhook(ctx context.Context, meta RequestMeta, event stripe.Event) error {
	details := map[string]interface{}{
		"type":     string(event.Type),
		"livemode": event.Livemode,
	}
	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceStripeWebhook).
		SetObject(event.ID)

	if event.Data != nil {
		if id, ok := event.Data.Object["id"].(string); ok {
			details["object_id"] = id
			if event.Data.Object["object"] == "payment_intent" {
				audit.SetPaymentIntent(id)
			}
		}
		if status, ok := event.Data.Object["status"].(string); ok {
			audit.SetPaymentStatus(status)
		}
	}
	return s.record(ctx, meta, audit.SetDetails(details), nil)
}

func (s *AuditService) record(ctx context.Context, meta RequestMeta, audit *models.PaymentAudit, opErr error) error {
	if opErr != nil {
		code, message := processor.ErrorDetails(opErr)
		audit.SetError(code, message)
	}

	audit.SetMetadata(meta.IPAddress, meta.UserAgent, meta.RequestID)
	if meta.UserAgent != "" {
		audit.SetDeviceInfo(utils.ParseUserAgent(meta.UserAgent).Map())
	}
	if !meta.StartedAt.IsZero() {
		audit.SetProcessingTime(meta.StartedAt)
	}

	return s.recorder.Record(ctx, audit)
}

// SafeRecord runs an audit call and logs a failure without failing the request
func (s *AuditService) SafeRecord(operation string, err error) {
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Error("Payment audit failed")
	}
}
