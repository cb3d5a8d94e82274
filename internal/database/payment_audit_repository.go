package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lessonbook/payments-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const paymentAuditSchema = `
	CREATE TABLE IF NOT EXISTS payment_audits (
		id                 UUID PRIMARY KEY,
		event_type         TEXT NOT NULL,
		event_source       TEXT NOT NULL,
		customer_id        TEXT,
		payment_intent_id  TEXT,
		object_id          TEXT,
		amount             BIGINT,
		currency           TEXT,
		payment_status     TEXT,
		error_code         TEXT,
		error_message      TEXT,
		details            JSONB,
		ip_address         TEXT,
		user_agent         TEXT,
		device_info        JSONB,
		correlation_id     TEXT,
		processing_time_ms INTEGER,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_payment_audits_payment_intent ON payment_audits (payment_intent_id);
	CREATE INDEX IF NOT EXISTS idx_payment_audits_customer ON payment_audits (customer_id);
	CREATE INDEX IF NOT EXISTS idx_payment_audits_event_created ON payment_audits (event_type, created_at DESC);`

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the audit table and indexes when missing
func (r *PaymentAuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, paymentAuditSchema); err != nil {
		return fmt.Errorf("failed to create payment_audits schema: %w", err)
	}
	return nil
}

// Record inserts a new payment audit entry
func (r *PaymentAuditRepository) Record(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, event_type, event_source,
			customer_id, payment_intent_id, object_id,
			amount, currency, payment_status,
			error_code, error_message, details,
			ip_address, user_agent, device_info, correlation_id,
			processing_time_ms, created_at
		) VALUES (
			:id, :event_type, :event_source,
			:customer_id, :payment_intent_id, :object_id,
			:amount, :currency, :payment_status,
			:error_code, :error_message, :details,
			:ip_address, :user_agent, :device_info, :correlation_id,
			:processing_time_ms, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, audit); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":        audit.EventType,
			"payment_intent_id": audit.PaymentIntentID,
		}).Error("Failed to write payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

// GetByPaymentIntentID retrieves all audit entries for a payment intent, oldest first
func (r *PaymentAuditRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*models.PaymentAudit, error) {
	audits := []*models.PaymentAudit{}
	query := `
		SELECT * FROM payment_audits
		WHERE payment_intent_id = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, paymentIntentID); err != nil {
		return nil, fmt.Errorf("failed to get audits by payment intent: %w", err)
	}
	return audits, nil
}

// GetByCustomerID retrieves all audit entries for a customer, oldest first
func (r *PaymentAuditRepository) GetByCustomerID(ctx context.Context, customerID string) ([]*models.PaymentAudit, error) {
	audits := []*models.PaymentAudit{}
	query := `
		SELECT * FROM payment_audits
		WHERE customer_id = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to get audits by customer: %w", err)
	}
	return audits, nil
}

// GetRecentByEventType retrieves recent events of a specific type, newest first
func (r *PaymentAuditRepository) GetRecentByEventType(ctx context.Context, eventType models.PaymentEventType, since time.Time, limit int) ([]*models.PaymentAudit, error) {
	audits := []*models.PaymentAudit{}
	query := `
		SELECT * FROM payment_audits
		WHERE event_type = $1
		AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`

	if err := r.db.SelectContext(ctx, &audits, query, eventType, since, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	return audits, nil
}

// Ping checks the audit database
func (r *PaymentAuditRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
