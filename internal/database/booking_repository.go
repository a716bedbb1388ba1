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

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

const bookingColumns = `b.id, b.user_id, b.station_id, b.created_at, b.expires_at, b.status, b.amount, b.meta, b.updated_at`

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateBooking inserts a PENDING booking. The station row is locked for the
// duration of the occupancy check so concurrent creates for one station serialize.
func (r *BookingRepository) CreateBooking(ctx context.Context, b *models.Booking) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stationID uuid.UUID
	err = tx.GetContext(ctx, &stationID, `SELECT id FROM stations WHERE id = $1 FOR UPDATE`, b.StationID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock station: %w", err)
	}

	var occupied bool
	err = tx.GetContext(ctx, &occupied, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE station_id = $1
			  AND (status = 'CONFIRMED' OR (status = 'PENDING' AND expires_at > $2))
		)`, b.StationID, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to check station occupancy: %w", err)
	}
	if occupied {
		return ErrStationOccupied
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (id, user_id, station_id, created_at, expires_at, status, amount, meta, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.UserID, b.StationID, b.CreatedAt, b.ExpiresAt, b.Status, b.Amount, b.Meta, b.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrStationNotFound
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	return tx.Commit()
}

// GetBooking retrieves a booking by ID, nil when it does not exist
func (r *BookingRepository) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// ListBookings lists bookings matching the filter, newest first. Status
// matching and paging both use the effective status at filter.Now.
func (r *BookingRepository) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
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
	if filter.StationID != nil {
		add("b.station_id = $%d", *filter.StationID)
	}
	if filter.StationOwnerID != nil {
		add("s.owner_id = $%d", *filter.StationOwnerID)
	}
	if len(filter.Statuses) > 0 {
		var parts []string
		parts, args = effectiveStatusConditions(filter.Statuses, filter.Now, args)
		conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings b JOIN stations s ON s.id = b.station_id`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY b.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	bookings := []*models.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// CompareAndSwapStatus moves a booking from expected to next if it is still in
// expected. Leaving PENDING is additionally guarded by the hold window, and
// leaving it for EXPIRED or CANCELLED fails the booking's CREATED payment in
// the same transaction.
func (r *BookingRepository) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next models.BookingStatus, now time.Time) (bool, error) {
	if !expected.CanTransitionTo(next) {
		return false, fmt.Errorf("invalid booking transition %s -> %s", expected, next)
	}

	query := `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	if expected == models.BookingStatusPending {
		if next == models.BookingStatusExpired {
			query += ` AND expires_at <= $2`
		} else {
			query += ` AND expires_at > $2`
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, next, now, id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if next == models.BookingStatusExpired || next == models.BookingStatusCancelled {
		_, err = tx.ExecContext(ctx, `
			UPDATE payments SET status = 'FAILED', updated_at = $1
			WHERE booking_id = $2 AND status = 'CREATED'`, now, id)
		if err != nil {
			return false, fmt.Errorf("failed to fail booking payment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit status change: %w", err)
	}
	return true, nil
}

// StationSummaries aggregates bookings per station. PENDING rows past their
// hold window count as expired.
func (r *BookingRepository) StationSummaries(ctx context.Context, ownerID *uuid.UUID, now time.Time) ([]models.StationSummary, error) {
	query := `
		SELECT s.id AS station_id, s.name AS station_name,
			COUNT(b.id) AS total_bookings,
			COUNT(b.id) FILTER (WHERE b.status IN ('CONFIRMED', 'COMPLETED')) AS confirmed_bookings,
			COUNT(b.id) FILTER (WHERE b.status = 'PENDING' AND b.expires_at > $1) AS pending_bookings,
			COUNT(b.id) FILTER (WHERE b.status = 'EXPIRED' OR (b.status = 'PENDING' AND b.expires_at <= $1)) AS expired_bookings,
			COUNT(b.id) FILTER (WHERE b.status = 'CANCELLED') AS cancelled_bookings,
			COALESCE(SUM(b.amount) FILTER (WHERE b.status IN ('CONFIRMED', 'COMPLETED')), 0) AS total_revenue
		FROM stations s
		LEFT JOIN bookings b ON b.station_id = s.id`
	args := []interface{}{now}
	if ownerID != nil {
		query += ` WHERE s.owner_id = $2`
		args = append(args, *ownerID)
	}
	query += ` GROUP BY s.id, s.name ORDER BY s.name`

	summaries := []models.StationSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to summarize stations: %w", err)
	}
	return summaries, nil
}

// effectiveStatusConditions builds OR-ed predicates matching rows by their
// status as observed at now. PENDING rows past their hold window match EXPIRED.
func effectiveStatusConditions(statuses []models.BookingStatus, now time.Time, args []interface{}) ([]string, []interface{}) {
	var (
		parts  []string
		stored []models.BookingStatus
		nowArg int
	)
	nowPlaceholder := func() int {
		if nowArg == 0 {
			args = append(args, now)
			nowArg = len(args)
		}
		return nowArg
	}

	for _, status := range statuses {
		switch status {
		case models.BookingStatusPending:
			parts = append(parts, fmt.Sprintf("(b.status = 'PENDING' AND b.expires_at > $%d)", nowPlaceholder()))
		case models.BookingStatusExpired:
			parts = append(parts, fmt.Sprintf("(b.status = 'PENDING' AND b.expires_at <= $%d)", nowPlaceholder()))
			stored = append(stored, status)
		default:
			stored = append(stored, status)
		}
	}
	if len(stored) > 0 {
		args = append(args, models.BookingStatusArray(stored))
		parts = append(parts, fmt.Sprintf("b.status = ANY($%d)", len(args)))
	}
	return parts, args
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
