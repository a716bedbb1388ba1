package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING STATUSES & STATE MACHINE
// ============================================================================

// BookingStatus represents the status of a charging slot booking
// Matches the CHECK constraint on bookings.status
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"   // Slot held, waiting for payment
	BookingStatusConfirmed BookingStatus = "CONFIRMED" // Payment done, slot reserved
	BookingStatusExpired   BookingStatus = "EXPIRED"   // Not paid within the hold window
	BookingStatusCancelled BookingStatus = "CANCELLED" // Cancelled by the user while pending
	BookingStatusCompleted BookingStatus = "COMPLETED" // Charging session finished
)

// BookingHoldDuration is how long a PENDING booking holds its station
const BookingHoldDuration = 2 * time.Minute

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusExpired, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted},
	BookingStatusExpired:   {},
	BookingStatusCancelled: {},
	BookingStatusCompleted: {},
}

// IsValid returns true if the status is a recognized booking status
func (s BookingStatus) IsValid() bool {
	_, exists := bookingTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// ParseBookingStatus converts a string to a BookingStatus
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// ============================================================================
// BOOKING MODEL (bookings table)
// ============================================================================

// Booking is a reservation of a charging station. Values are treated as
// immutable snapshots; state changes go through the store's conditional updates.
type Booking struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	UserID    uuid.UUID     `json:"user_id" db:"user_id"`
	StationID uuid.UUID     `json:"station_id" db:"station_id"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	ExpiresAt time.Time     `json:"expires_at" db:"expires_at"`
	Status    BookingStatus `json:"status" db:"status"`
	Amount    float64       `json:"amount" db:"amount"`
	Meta      Metadata      `json:"meta,omitempty" db:"meta"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// ExpiresAtFor returns the expiry instant of a booking created at createdAt
func ExpiresAtFor(createdAt time.Time) time.Time {
	return createdAt.Add(BookingHoldDuration)
}

// EffectiveStatus is the status a caller observes at now: a PENDING booking
// whose hold window has passed is EXPIRED even before that is persisted.
func EffectiveStatus(b *Booking, now time.Time) BookingStatus {
	if b.Status == BookingStatusPending && !now.Before(b.ExpiresAt) {
		return BookingStatusExpired
	}
	return b.Status
}

// NeedsExpiry reports whether the stored status lags behind the effective one
func (b *Booking) NeedsExpiry(now time.Time) bool {
	return EffectiveStatus(b, now) != b.Status
}

// OccupiesStation reports whether the booking keeps its station unavailable at now
func (b *Booking) OccupiesStation(now time.Time) bool {
	switch EffectiveStatus(b, now) {
	case BookingStatusPending, BookingStatusConfirmed:
		return true
	default:
		return false
	}
}

// WithStatus returns a copy of the booking carrying the given status
func (b Booking) WithStatus(status BookingStatus, at time.Time) *Booking {
	b.Status = status
	b.UpdatedAt = at
	return &b
}

// TTLSeconds returns the remaining hold time in whole seconds, 0 once lapsed
func (b *Booking) TTLSeconds(now time.Time) int {
	if b.Status != BookingStatusPending {
		return 0
	}
	ttl := int(b.ExpiresAt.Sub(now).Seconds())
	if ttl < 0 {
		return 0
	}
	return ttl
}

// RoundAmount rounds a monetary amount to 2 decimal places (NUMERIC(10,2))
func RoundAmount(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// ============================================================================
// REQUEST / FILTER TYPES
// ============================================================================

// CreateBookingRequest represents the request to reserve a station
type CreateBookingRequest struct {
	StationID string   `json:"station_id" binding:"required,uuid"`
	Amount    *float64 `json:"amount,omitempty"`
	Meta      Metadata `json:"meta,omitempty"`
}

// Validate validates the create booking request
func (r *CreateBookingRequest) Validate() error {
	if r.Amount != nil && *r.Amount < 0 {
		return errors.New("amount must not be negative")
	}
	if r.Amount != nil && *r.Amount > 99999999.99 {
		return errors.New("amount exceeds the maximum allowed value")
	}
	return nil
}

// PayBookingRequest represents the request body of POST /bookings/:id/pay
type PayBookingRequest struct {
	Confirm bool `json:"confirm"`
}

// BookingFilter narrows a booking listing. Nil fields are unrestricted.
// Statuses are matched against the effective status at Now, so a stored
// PENDING row past its hold window matches EXPIRED and not PENDING.
type BookingFilter struct {
	UserID         *uuid.UUID
	StationID      *uuid.UUID
	StationOwnerID *uuid.UUID
	Statuses       []BookingStatus
	Now            time.Time
	Limit          int
	Offset         int
}

// MatchesBooking reports whether b's effective status at f.Now satisfies the filter
func (f BookingFilter) MatchesBooking(b *Booking) bool {
	return f.MatchesStatus(EffectiveStatus(b, f.Now))
}

// MatchesStatus reports whether a booking satisfies the filter's status restriction
func (f BookingFilter) MatchesStatus(status BookingStatus) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// ============================================================================
// RESPONSE TYPES
// ============================================================================

// BookingResponse is the API representation of a booking
type BookingResponse struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	StationID   uuid.UUID     `json:"station_id"`
	StationName string        `json:"station_name,omitempty"`
	Amount      float64       `json:"amount"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	TTLSeconds  int           `json:"ttl_seconds"`
	Meta        Metadata      `json:"meta,omitempty"`
}

// NewBookingResponse builds the API representation of a booking at now
func NewBookingResponse(b *Booking, now time.Time) BookingResponse {
	return BookingResponse{
		ID:         b.ID,
		UserID:     b.UserID,
		StationID:  b.StationID,
		Amount:     b.Amount,
		Status:     b.Status,
		CreatedAt:  b.CreatedAt,
		ExpiresAt:  b.ExpiresAt,
		TTLSeconds: b.TTLSeconds(now),
		Meta:       b.Meta,
	}
}

// StationSummary aggregates booking activity of one station for its owner
type StationSummary struct {
	StationID         uuid.UUID `json:"station_id" db:"station_id"`
	StationName       string    `json:"station_name" db:"station_name"`
	TotalBookings     int       `json:"total_bookings" db:"total_bookings"`
	ConfirmedBookings int       `json:"confirmed_bookings" db:"confirmed_bookings"`
	PendingBookings   int       `json:"pending_bookings" db:"pending_bookings"`
	ExpiredBookings   int       `json:"expired_bookings" db:"expired_bookings"`
	CancelledBookings int       `json:"cancelled_bookings" db:"cancelled_bookings"`
	TotalRevenue      float64   `json:"total_revenue" db:"total_revenue"`
}
