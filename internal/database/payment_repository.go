package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chargeslot/booking-backend/internal/models"
)

const paymentColumns = `id, booking_id, amount, gateway_order_id, gateway_payment_id, status, created_at, updated_at`

// PaymentRepository handles payment database operations
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetPayment retrieves a payment by ID, nil when it does not exist
func (r *PaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetPaymentByBooking retrieves the payment of a booking, nil when there is none
func (r *PaymentRepository) GetPaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1`, bookingID)
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Payment, error) {
	var p models.Payment
	err := r.db.GetContext(ctx, &p, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// ListPayments lists payments matching the filter, newest first
func (r *PaymentRepository) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != nil {
		add("b.user_id = $%d", *filter.UserID)
	}
	if filter.StationOwnerID != nil {
		add("s.owner_id = $%d", *filter.StationOwnerID)
	}
	if filter.BookingID != nil {
		add("p.booking_id = $%d", *filter.BookingID)
	}

	query := `
		SELECT p.id, p.booking_id, p.amount, p.gateway_order_id, p.gateway_payment_id, p.status, p.created_at, p.updated_at
		FROM payments p
		JOIN bookings b ON b.id = p.booking_id
		JOIN stations s ON s.id = b.station_id`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	payments := []*models.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// OpenPayment inserts the booking's payment or, when a CREATED one exists,
// replaces its gateway order reference. The booking row is locked while its
// status and hold window are checked.
func (r *PaymentRepository) OpenPayment(ctx context.Context, p *models.Payment, now time.Time) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status models.BookingStatus
	err = tx.GetContext(ctx, &status, `
		SELECT status FROM bookings
		WHERE id = $1 AND expires_at > $2
		FOR UPDATE`, p.BookingID, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	if status != models.BookingStatusPending {
		return nil, ErrBookingNotPending
	}

	var stored models.Payment
	err = tx.GetContext(ctx, &stored, `
		INSERT INTO payments (id, booking_id, amount, gateway_order_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'CREATED', $5, $5)
		ON CONFLICT (booking_id) DO UPDATE
			SET gateway_order_id = EXCLUDED.gateway_order_id, updated_at = EXCLUDED.updated_at
			WHERE payments.status = 'CREATED'
		RETURNING `+paymentColumns,
		p.ID, p.BookingID, p.Amount, p.GatewayOrderID, now,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// The conflicting row exists but is not CREATED
		return nil, ErrPaymentClosed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return &stored, nil
}

// ConfirmPayment confirms the booking and pays the payment in one transaction
func (r *PaymentRepository) ConfirmPayment(ctx context.Context, paymentID, bookingID uuid.UUID, gatewayPaymentID string, now time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE bookings SET status = 'CONFIRMED', updated_at = $1
		WHERE id = $2 AND status = 'PENDING' AND expires_at > $1`, now, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to confirm booking: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil || rows == 0 {
		return false, err
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE payments SET status = 'PAID', gateway_payment_id = $1, updated_at = $2
		WHERE id = $3 AND booking_id = $4 AND status = 'CREATED'`, gatewayPaymentID, now, paymentID, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil || rows == 0 {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return true, nil
}

// FailPayment moves a CREATED payment to FAILED
func (r *PaymentRepository) FailPayment(ctx context.Context, paymentID uuid.UUID, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = 'FAILED', updated_at = $1
		WHERE id = $2 AND status = 'CREATED'`, now, paymentID)
	if err != nil {
		return false, fmt.Errorf("failed to fail payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}
