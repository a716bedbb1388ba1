package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/models"
)

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

// Log creates a new payment audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO payment_audits (
			id, booking_id, payment_id, actor_id, event_type, event_source,
			amount, payment_status, gateway_order_id, gateway_payment_id,
			error_message, processing_time_ms, is_duplicate,
			ip_address, user_agent, device_type, created_at
		) VALUES (
			:id, :booking_id, :payment_id, :actor_id, :event_type, :event_source,
			:amount, :payment_status, :gateway_order_id, :gateway_payment_id,
			:error_message, :processing_time_ms, :is_duplicate,
			:ip_address, :user_agent, :device_type, :created_at
		)`, audit)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"booking_id": audit.BookingID,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"booking_id": audit.BookingID,
	}).Debug("Payment audit logged")
	return nil
}

// ListByBooking returns the audit trail of a booking, oldest first
func (r *PaymentAuditRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	err := r.db.SelectContext(ctx, &audits, `
		SELECT id, booking_id, payment_id, actor_id, event_type, event_source,
			amount, payment_status, gateway_order_id, gateway_payment_id,
			error_message, processing_time_ms, is_duplicate,
			ip_address, user_agent, device_type, created_at
		FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return audits, nil
}
