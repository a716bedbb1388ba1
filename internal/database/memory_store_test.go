package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chargeslot/booking-backend/internal/models"
)

func seededMemoryStore(t *testing.T) (*MemoryStore, models.Station) {
	t.Helper()
	store := NewMemoryStore()
	owner := models.User{ID: uuid.New(), Email: "owner@example.com", Role: models.RoleChargerOwner}
	station := models.Station{ID: uuid.New(), OwnerID: owner.ID, Name: "Harbour", Price: 40, IsActive: true}
	store.AddUser(owner)
	store.AddStation(station)
	return store, station
}

func TestMemoryStore_CreateBookingOccupancy(t *testing.T) {
	ctx := context.Background()
	store, station := seededMemoryStore(t)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := newPendingBooking(t0)
	first.StationID = station.ID
	require.NoError(t, store.CreateBooking(ctx, first))

	second := newPendingBooking(t0.Add(time.Minute))
	second.StationID = station.ID
	assert.ErrorIs(t, store.CreateBooking(ctx, second), ErrStationOccupied)

	// Once the hold window has passed the station is free again, even before read-repair
	third := newPendingBooking(t0.Add(models.BookingHoldDuration))
	third.StationID = station.ID
	assert.NoError(t, store.CreateBooking(ctx, third))

	unknown := newPendingBooking(t0)
	assert.ErrorIs(t, store.CreateBooking(ctx, unknown), ErrStationNotFound)
}

func TestMemoryStore_CompareAndSwapGuards(t *testing.T) {
	ctx := context.Background()
	store, station := seededMemoryStore(t)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	b := newPendingBooking(t0)
	b.StationID = station.ID
	require.NoError(t, store.CreateBooking(ctx, b))

	ok, err := store.CompareAndSwapStatus(ctx, b.ID, models.BookingStatusPending, models.BookingStatusExpired, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "cannot expire inside the hold window")

	ref := "fake_order_1"
	_, err = store.OpenPayment(ctx, &models.Payment{ID: uuid.New(), BookingID: b.ID, Amount: b.Amount, GatewayOrderID: &ref}, t0.Add(time.Second))
	require.NoError(t, err)

	ok, err = store.CompareAndSwapStatus(ctx, b.ID, models.BookingStatusPending, models.BookingStatusCancelled, t0.Add(3*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "cannot cancel after the hold window")

	ok, err = store.CompareAndSwapStatus(ctx, b.ID, models.BookingStatusPending, models.BookingStatusExpired, t0.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := store.GetPaymentByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, p.Status)

	ok, err = store.CompareAndSwapStatus(ctx, b.ID, models.BookingStatusPending, models.BookingStatusExpired, t0.Add(4*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "second expiry is a no-op")
}

func TestMemoryStore_OpenPaymentReusesCreated(t *testing.T) {
	ctx := context.Background()
	store, station := seededMemoryStore(t)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	b := newPendingBooking(t0)
	b.StationID = station.ID
	require.NoError(t, store.CreateBooking(ctx, b))

	ref1, ref2 := "fake_order_1", "fake_order_2"
	first, err := store.OpenPayment(ctx, &models.Payment{ID: uuid.New(), BookingID: b.ID, Amount: 50, GatewayOrderID: &ref1}, t0)
	require.NoError(t, err)
	second, err := store.OpenPayment(ctx, &models.Payment{ID: uuid.New(), BookingID: b.ID, Amount: 50, GatewayOrderID: &ref2}, t0.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, ref2, second.OrderRef())

	ok, err := store.ConfirmPayment(ctx, first.ID, b.ID, "fake_pay_1", t0.Add(2*time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	ref3 := "fake_order_3"
	_, err = store.OpenPayment(ctx, &models.Payment{ID: uuid.New(), BookingID: b.ID, Amount: 50, GatewayOrderID: &ref3}, t0.Add(3*time.Second))
	assert.ErrorIs(t, err, ErrBookingNotPending)

	payments, err := store.ListPayments(ctx, models.PaymentFilter{BookingID: &b.ID})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestMemoryStore_ConfirmPaymentAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store, station := seededMemoryStore(t)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	b := newPendingBooking(t0)
	b.StationID = station.ID
	require.NoError(t, store.CreateBooking(ctx, b))
	ref := "fake_order_1"
	p, err := store.OpenPayment(ctx, &models.Payment{ID: uuid.New(), BookingID: b.ID, Amount: 50, GatewayOrderID: &ref}, t0)
	require.NoError(t, err)

	ok, err := store.ConfirmPayment(ctx, p.ID, b.ID, "fake_pay_1", b.ExpiresAt)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, _ := store.GetBooking(ctx, b.ID)
	assert.Equal(t, models.BookingStatusPending, stored.Status)
	storedPayment, _ := store.GetPayment(ctx, p.ID)
	assert.Equal(t, models.PaymentStatusCreated, storedPayment.Status)
}

func TestMemoryStore_StationSummaries(t *testing.T) {
	ctx := context.Background()
	store, station := seededMemoryStore(t)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	expired := newPendingBooking(t0)
	expired.StationID = station.ID
	require.NoError(t, store.CreateBooking(ctx, expired))

	paid := newPendingBooking(t0.Add(5 * time.Minute))
	paid.StationID = station.ID
	paid.Amount = 60
	require.NoError(t, store.CreateBooking(ctx, paid))
	ref := "fake_order_1"
	p, err := store.OpenPayment(ctx, &models.Payment{ID: uuid.New(), BookingID: paid.ID, Amount: 60, GatewayOrderID: &ref}, t0.Add(5*time.Minute))
	require.NoError(t, err)
	ok, err := store.ConfirmPayment(ctx, p.ID, paid.ID, "fake_pay_1", t0.Add(6*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	ownerID := station.OwnerID
	summaries, err := store.StationSummaries(ctx, &ownerID, t0.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].TotalBookings)
	assert.Equal(t, 1, summaries[0].ConfirmedBookings)
	assert.Equal(t, 1, summaries[0].ExpiredBookings)
	assert.Equal(t, 0, summaries[0].PendingBookings)
	assert.Equal(t, 60.0, summaries[0].TotalRevenue)

	other := uuid.New()
	none, err := store.StationSummaries(ctx, &other, t0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_ListBookingsByEffectiveStatus(t *testing.T) {
	ctx := context.Background()
	store, station := seededMemoryStore(t)
	other := models.Station{ID: uuid.New(), OwnerID: station.OwnerID, Name: "Airport", Price: 60, IsActive: true}
	store.AddStation(other)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	lapsed := newPendingBooking(t0)
	lapsed.StationID = station.ID
	require.NoError(t, store.CreateBooking(ctx, lapsed))

	t1 := t0.Add(3 * time.Minute)
	live := newPendingBooking(t1)
	live.StationID = other.ID
	require.NoError(t, store.CreateBooking(ctx, live))

	expired, err := store.ListBookings(ctx, models.BookingFilter{
		Statuses: []models.BookingStatus{models.BookingStatusExpired},
		Now:      t1,
		Limit:    1,
	})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, lapsed.ID, expired[0].ID)

	pending, err := store.ListBookings(ctx, models.BookingFilter{
		Statuses: []models.BookingStatus{models.BookingStatusPending},
		Now:      t1,
		Limit:    1,
	})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, live.ID, pending[0].ID)
}
