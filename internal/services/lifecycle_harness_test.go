package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/chargeslot/booking-backend/internal/database"
	"github.com/chargeslot/booking-backend/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingGateway approves every order and counts the calls it receives
type countingGateway struct {
	opens    atomic.Int32
	confirms atomic.Int32

	mu         sync.Mutex
	openErr    error
	confirmErr error
	onConfirm  func()
}

func (g *countingGateway) OpenOrder(ctx context.Context, amount float64, receipt string) (string, error) {
	n := g.opens.Add(1)
	g.mu.Lock()
	err := g.openErr
	g.mu.Unlock()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("order_%s_%d", receipt[:8], n), nil
}

func (g *countingGateway) ConfirmOrder(ctx context.Context, orderRef string) (string, error) {
	g.confirms.Add(1)
	g.mu.Lock()
	err, hook := g.confirmErr, g.onConfirm
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}
	return "pay_" + orderRef, nil
}

func (g *countingGateway) failConfirm(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirmErr = err
}

// countingStore counts conditional status writes that took effect
type countingStore struct {
	*database.MemoryStore
	swaps atomic.Int32
}

func (s *countingStore) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next models.BookingStatus, now time.Time) (bool, error) {
	ok, err := s.MemoryStore.CompareAndSwapStatus(ctx, id, expected, next, now)
	if ok {
		s.swaps.Add(1)
	}
	return ok, err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []LifecycleEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]LifecycleEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type lifecycleHarness struct {
	svc     *BookingLifecycleService
	store   *countingStore
	gateway *countingGateway
	clock   *fakeClock
	events  *recordingPublisher

	station models.Station
	owner   models.Actor
	driver  models.Actor
	other   models.Actor
	admin   models.Actor
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newLifecycleHarness(t *testing.T) *lifecycleHarness {
	t.Helper()

	h := &lifecycleHarness{
		store:   &countingStore{MemoryStore: database.NewMemoryStore()},
		gateway: &countingGateway{},
		clock:   &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		events:  &recordingPublisher{},
		owner:   models.Actor{ID: uuid.New(), Role: models.RoleChargerOwner},
		driver:  models.Actor{ID: uuid.New(), Role: models.RoleEVOwner},
		other:   models.Actor{ID: uuid.New(), Role: models.RoleEVOwner},
		admin:   models.Actor{ID: uuid.New(), Role: models.RoleAdmin},
	}
	for _, a := range []models.Actor{h.owner, h.driver, h.other, h.admin} {
		h.store.AddUser(models.User{ID: a.ID, Email: a.ID.String() + "@example.com", Role: a.Role})
	}
	h.station = models.Station{ID: uuid.New(), OwnerID: h.owner.ID, Name: "Harbour", Price: 50, IsActive: true}
	h.store.AddStation(h.station)

	logger := testLogger()
	h.svc = NewBookingLifecycleService(
		h.store, h.store, h.store,
		NewRoleGate(),
		h.gateway,
		NewLocalLocker(),
		h.events,
		NewAuditService(h.store, logger),
		h.clock,
		BookingLifecycleConfig{GatewayTimeout: time.Second, EventTimeout: time.Second},
		logger,
	)
	return h
}

func (h *lifecycleHarness) addStation(t *testing.T) models.Station {
	t.Helper()
	s := models.Station{ID: uuid.New(), OwnerID: h.owner.ID, Name: "Station " + uuid.NewString()[:4], Price: 30, IsActive: true}
	h.store.AddStation(s)
	return s
}

func (h *lifecycleHarness) book(t *testing.T, actor models.Actor, stationID uuid.UUID) *models.Booking {
	t.Helper()
	b, err := h.svc.CreateBooking(context.Background(), actor, &models.CreateBookingRequest{StationID: stationID.String()})
	require.NoError(t, err)
	return b
}

func (h *lifecycleHarness) openPayment(t *testing.T, b *models.Booking) *models.PaymentResult {
	t.Helper()
	res, err := h.svc.InitiatePay(context.Background(), h.driver, b.ID, false)
	require.NoError(t, err)
	return res
}

func (h *lifecycleHarness) stored(t *testing.T, bookingID uuid.UUID) (*models.Booking, *models.Payment) {
	t.Helper()
	ctx := context.Background()
	b, err := h.store.GetBooking(ctx, bookingID)
	require.NoError(t, err)
	p, err := h.store.GetPaymentByBooking(ctx, bookingID)
	require.NoError(t, err)
	return b, p
}
