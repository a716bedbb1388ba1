package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chargeslot/booking-backend/internal/models"
)

// BookingStore persists bookings. Every status change is a conditional write
// that reports false without side effects when its precondition no longer holds.
type BookingStore interface {
	// CreateBooking inserts a PENDING booking unless its station is occupied at
	// b.CreatedAt (database.ErrStationOccupied).
	CreateBooking(ctx context.Context, b *models.Booking) error

	// GetBooking returns nil, nil when the booking does not exist
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)

	// ListBookings filters and pages by effective status at filter.Now
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)

	// CompareAndSwapStatus moves a booking from expected to next. Moving from
	// PENDING requires the hold window to have lapsed at now for EXPIRED and to
	// still be open for any other target. Leaving PENDING for EXPIRED or
	// CANCELLED fails a CREATED payment of the booking in the same transaction.
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next models.BookingStatus, now time.Time) (bool, error)

	// StationSummaries aggregates bookings of the stations owned by ownerID,
	// or of all stations when ownerID is nil
	StationSummaries(ctx context.Context, ownerID *uuid.UUID, now time.Time) ([]models.StationSummary, error)
}

// PaymentStore persists payments, at most one per booking
type PaymentStore interface {
	// GetPayment returns nil, nil when the payment does not exist
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)

	// GetPaymentByBooking returns nil, nil when the booking has no payment
	GetPaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)

	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error)

	// OpenPayment inserts p, or reuses the booking's CREATED payment with
	// p.GatewayOrderID, and returns the stored record. The booking must still be
	// PENDING and unexpired at now (database.ErrBookingNotPending) and an
	// existing payment must be CREATED (database.ErrPaymentClosed).
	OpenPayment(ctx context.Context, p *models.Payment, now time.Time) (*models.Payment, error)

	// ConfirmPayment atomically moves the booking PENDING->CONFIRMED (only while
	// unexpired at now) and the payment CREATED->PAID. Either precondition
	// failing leaves both records untouched and returns false.
	ConfirmPayment(ctx context.Context, paymentID, bookingID uuid.UUID, gatewayPaymentID string, now time.Time) (bool, error)

	// FailPayment moves a CREATED payment to FAILED
	FailPayment(ctx context.Context, paymentID uuid.UUID, now time.Time) (bool, error)
}

// Directory answers questions about stations and users owned by other services
type Directory interface {
	// FindStation returns nil, nil when the station does not exist
	FindStation(ctx context.Context, stationID uuid.UUID) (*models.Station, error)
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
}

// PaymentAuditor records payment events
type PaymentAuditor interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentAudit, error)
}
