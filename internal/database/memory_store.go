package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chargeslot/booking-backend/internal/models"
)

// MemoryStore keeps bookings, payments, stations, users and audits in process
// memory. It honours the same conditional write contracts as the Postgres
// repositories and is used for local runs (BOOKING_STORE=memory) and tests.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	stations map[uuid.UUID]models.Station
	bookings map[uuid.UUID]models.Booking
	payments map[uuid.UUID]models.Payment
	audits   []models.PaymentAudit
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]models.User),
		stations: make(map[uuid.UUID]models.Station),
		bookings: make(map[uuid.UUID]models.Booking),
		payments: make(map[uuid.UUID]models.Payment),
	}
}

// AddUser registers a user
func (m *MemoryStore) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// AddStation registers a station
func (m *MemoryStore) AddStation(s models.Station) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stations[s.ID] = s
}

// ============================================================================
// DIRECTORY
// ============================================================================

// FindStation implements the station lookup
func (m *MemoryStore) FindStation(ctx context.Context, stationID uuid.UUID) (*models.Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stations[stationID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// UserExists implements the user lookup
func (m *MemoryStore) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[userID]
	return ok, nil
}

// ============================================================================
// BOOKINGS
// ============================================================================

// CreateBooking inserts a PENDING booking unless the station is occupied
func (m *MemoryStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stations[b.StationID]; !ok {
		return ErrStationNotFound
	}
	for _, existing := range m.bookings {
		if existing.StationID == b.StationID && occupies(&existing, b.CreatedAt) {
			return ErrStationOccupied
		}
	}
	if _, dup := m.bookings[b.ID]; dup {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	m.bookings[b.ID] = *b
	return nil
}

// occupies mirrors the SQL occupancy predicate: CONFIRMED, or PENDING inside its hold window
func occupies(b *models.Booking, at time.Time) bool {
	switch b.Status {
	case models.BookingStatusConfirmed:
		return true
	case models.BookingStatusPending:
		return b.ExpiresAt.After(at)
	default:
		return false
	}
}

// GetBooking returns a copy of the booking, nil when it does not exist
func (m *MemoryStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// ListBookings lists bookings matching the filter, newest first
func (m *MemoryStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*models.Booking{}
	for _, b := range m.bookings {
		if filter.UserID != nil && b.UserID != *filter.UserID {
			continue
		}
		if filter.StationID != nil && b.StationID != *filter.StationID {
			continue
		}
		if filter.StationOwnerID != nil && m.stations[b.StationID].OwnerID != *filter.StationOwnerID {
			continue
		}
		b := b
		if !filter.MatchesBooking(&b) {
			continue
		}
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

// CompareAndSwapStatus applies the same guards as BookingRepository.CompareAndSwapStatus
func (m *MemoryStore) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next models.BookingStatus, now time.Time) (bool, error) {
	if !expected.CanTransitionTo(next) {
		return false, fmt.Errorf("invalid booking transition %s -> %s", expected, next)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || b.Status != expected {
		return false, nil
	}
	if expected == models.BookingStatusPending {
		lapsed := !now.Before(b.ExpiresAt)
		if (next == models.BookingStatusExpired) != lapsed {
			return false, nil
		}
	}

	b.Status = next
	b.UpdatedAt = now
	m.bookings[id] = b

	if next == models.BookingStatusExpired || next == models.BookingStatusCancelled {
		for pid, p := range m.payments {
			if p.BookingID == id && p.Status == models.PaymentStatusCreated {
				p.Status = models.PaymentStatusFailed
				p.UpdatedAt = now
				m.payments[pid] = p
			}
		}
	}
	return true, nil
}

// StationSummaries aggregates bookings per station, ordered by station name
func (m *MemoryStore) StationSummaries(ctx context.Context, ownerID *uuid.UUID, now time.Time) ([]models.StationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStation := map[uuid.UUID]*models.StationSummary{}
	for _, s := range m.stations {
		if ownerID != nil && s.OwnerID != *ownerID {
			continue
		}
		byStation[s.ID] = &models.StationSummary{StationID: s.ID, StationName: s.Name}
	}
	for _, b := range m.bookings {
		sum, ok := byStation[b.StationID]
		if !ok {
			continue
		}
		sum.TotalBookings++
		switch models.EffectiveStatus(&b, now) {
		case models.BookingStatusConfirmed, models.BookingStatusCompleted:
			sum.ConfirmedBookings++
			sum.TotalRevenue = models.RoundAmount(sum.TotalRevenue + b.Amount)
		case models.BookingStatusPending:
			sum.PendingBookings++
		case models.BookingStatusExpired:
			sum.ExpiredBookings++
		case models.BookingStatusCancelled:
			sum.CancelledBookings++
		}
	}

	out := make([]models.StationSummary, 0, len(byStation))
	for _, sum := range byStation {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationName < out[j].StationName })
	return out, nil
}

// ============================================================================
// PAYMENTS
// ============================================================================

// GetPayment returns a copy of the payment, nil when it does not exist
func (m *MemoryStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// GetPaymentByBooking returns the booking's payment, nil when there is none
func (m *MemoryStore) GetPaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.paymentOf(bookingID); p != nil {
		out := *p
		return &out, nil
	}
	return nil, nil
}

func (m *MemoryStore) paymentOf(bookingID uuid.UUID) *models.Payment {
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			return &p
		}
	}
	return nil
}

// ListPayments lists payments matching the filter, newest first
func (m *MemoryStore) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*models.Payment{}
	for _, p := range m.payments {
		b := m.bookings[p.BookingID]
		if filter.UserID != nil && b.UserID != *filter.UserID {
			continue
		}
		if filter.StationOwnerID != nil && m.stations[b.StationID].OwnerID != *filter.StationOwnerID {
			continue
		}
		if filter.BookingID != nil && p.BookingID != *filter.BookingID {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

// OpenPayment inserts or reuses the booking's CREATED payment
func (m *MemoryStore) OpenPayment(ctx context.Context, p *models.Payment, now time.Time) (*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[p.BookingID]
	if !ok || b.Status != models.BookingStatusPending || !b.ExpiresAt.After(now) {
		return nil, ErrBookingNotPending
	}

	if existing := m.paymentOf(p.BookingID); existing != nil {
		if existing.Status != models.PaymentStatusCreated {
			return nil, ErrPaymentClosed
		}
		existing.GatewayOrderID = p.GatewayOrderID
		existing.UpdatedAt = now
		m.payments[existing.ID] = *existing
		out := *existing
		return &out, nil
	}

	stored := *p
	stored.Status = models.PaymentStatusCreated
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.payments[stored.ID] = stored
	return &stored, nil
}

// ConfirmPayment confirms the booking and pays the payment as one unit
func (m *MemoryStore) ConfirmPayment(ctx context.Context, paymentID, bookingID uuid.UUID, gatewayPaymentID string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok || b.Status != models.BookingStatusPending || !b.ExpiresAt.After(now) {
		return false, nil
	}
	p, ok := m.payments[paymentID]
	if !ok || p.BookingID != bookingID || p.Status != models.PaymentStatusCreated {
		return false, nil
	}

	b.Status = models.BookingStatusConfirmed
	b.UpdatedAt = now
	ref := gatewayPaymentID
	p.Status = models.PaymentStatusPaid
	p.GatewayPaymentID = &ref
	p.UpdatedAt = now

	m.bookings[bookingID] = b
	m.payments[paymentID] = p
	return true, nil
}

// FailPayment moves a CREATED payment to FAILED
func (m *MemoryStore) FailPayment(ctx context.Context, paymentID uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok || p.Status != models.PaymentStatusCreated {
		return false, nil
	}
	p.Status = models.PaymentStatusFailed
	p.UpdatedAt = now
	m.payments[paymentID] = p
	return true, nil
}

// ============================================================================
// AUDIT
// ============================================================================

// Log appends a payment audit entry
func (m *MemoryStore) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, *audit)
	return nil
}

// ListByBooking returns the audit trail of a booking, oldest first
func (m *MemoryStore) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PaymentAudit{}
	for _, a := range m.audits {
		if a.BookingID == bookingID {
			out = append(out, a)
		}
	}
	return out, nil
}

func page[T any](items []*T, limit, offset int) []*T {
	limit, offset = pageBounds(limit, offset)
	if offset >= len(items) {
		return []*T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
