package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrStationOccupied is returned when a station already has a PENDING (unexpired) or CONFIRMED booking
	ErrStationOccupied = errors.New("station is occupied")

	// ErrStationNotFound is returned when a booking references an unknown station
	ErrStationNotFound = errors.New("station not found")

	// ErrBookingNotPending is returned when a payment is opened for a booking that is no longer payable
	ErrBookingNotPending = errors.New("booking is not pending")

	// ErrPaymentClosed is returned when the booking's payment is no longer CREATED
	ErrPaymentClosed = errors.New("payment is closed")
)

const foreignKeyViolation = "23503"

// pgErrorCode extracts the SQLSTATE from either supported driver's error
func pgErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == foreignKeyViolation
}
