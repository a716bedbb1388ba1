package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/database"
	"github.com/chargeslot/booking-backend/internal/models"
)

// BookingLifecycleConfig holds configuration for the lifecycle service
type BookingLifecycleConfig struct {
	GatewayTimeout time.Duration // upper bound of a single gateway call
	EventTimeout   time.Duration // upper bound of a single event publish
}

// DefaultLifecycleConfig returns default configuration
func DefaultLifecycleConfig() BookingLifecycleConfig {
	return BookingLifecycleConfig{
		GatewayTimeout: 10 * time.Second,
		EventTimeout:   3 * time.Second,
	}
}

// BookingLifecycleService handles the create → pay → confirm / expire / cancel flow.
//
// Every operation follows the same order: load the records, authorize the
// actor, reconcile expiry, then branch on the reconciled status. Operations
// that mutate a booking hold the booking's lock for their whole duration so
// that at most one gateway call is in flight per booking.
type BookingLifecycleService struct {
	bookings  BookingStore
	payments  PaymentStore
	directory Directory
	gate      Authorizer
	gateway   PaymentGateway
	locker    Locker
	events    EventPublisher
	audit     *AuditService
	clock     Clock
	config    BookingLifecycleConfig
	logger    *logrus.Logger
}

// NewBookingLifecycleService creates a new lifecycle service
func NewBookingLifecycleService(
	bookings BookingStore,
	payments PaymentStore,
	directory Directory,
	gate Authorizer,
	gateway PaymentGateway,
	locker Locker,
	events EventPublisher,
	audit *AuditService,
	clock Clock,
	config BookingLifecycleConfig,
	logger *logrus.Logger,
) *BookingLifecycleService {
	return &BookingLifecycleService{
		bookings:  bookings,
		payments:  payments,
		directory: directory,
		gate:      gate,
		gateway:   gateway,
		locker:    locker,
		events:    events,
		audit:     audit,
		clock:     clock,
		config:    config,
		logger:    logger,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBooking reserves a station for the actor. The booking starts PENDING
// and holds the station for models.BookingHoldDuration.
func (s *BookingLifecycleService) CreateBooking(ctx context.Context, actor models.Actor, req *models.CreateBookingRequest) (*models.Booking, error) {
	if !s.gate.Authorize(actor, ActionCreateBooking, OwnerHint{UserID: actor.ID}) {
		return nil, newLifecycleError(CodeForbidden, "not allowed to create bookings")
	}
	if err := req.Validate(); err != nil {
		return nil, newLifecycleError(CodeValidation, err.Error())
	}
	stationID, err := uuid.Parse(req.StationID)
	if err != nil {
		return nil, newLifecycleError(CodeValidation, "invalid station_id")
	}

	exists, err := s.directory.UserExists(ctx, actor.ID)
	if err != nil {
		return nil, internalError("failed to look up user", err)
	}
	if !exists {
		return nil, newLifecycleError(CodeNotFound, "user not found")
	}

	station, err := s.directory.FindStation(ctx, stationID)
	if err != nil {
		return nil, internalError("failed to look up station", err)
	}
	if station == nil {
		return nil, newLifecycleError(CodeNotFound, "station not found")
	}
	if !station.IsActive {
		return nil, newLifecycleError(CodeInvalidState, "station is not accepting bookings")
	}

	amount := station.Price
	if req.Amount != nil {
		amount = *req.Amount
	}

	now := s.clock.Now()
	booking := &models.Booking{
		ID:        uuid.New(),
		UserID:    actor.ID,
		StationID: stationID,
		CreatedAt: now,
		ExpiresAt: models.ExpiresAtFor(now),
		Status:    models.BookingStatusPending,
		Amount:    models.RoundAmount(amount),
		Meta:      req.Meta,
		UpdatedAt: now,
	}

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		switch {
		case errors.Is(err, database.ErrStationOccupied):
			return nil, newLifecycleError(CodeConflict, "station already has an active booking")
		case errors.Is(err, database.ErrStationNotFound):
			return nil, newLifecycleError(CodeNotFound, "station not found")
		default:
			return nil, internalError("failed to create booking", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    booking.UserID,
		"station_id": booking.StationID,
		"amount":     booking.Amount,
		"expires_at": booking.ExpiresAt,
	}).Info("Booking created")

	s.publish(ctx, newLifecycleEvent(EventBookingCreated, booking, nil, now))
	return booking, nil
}

// ============================================================================
// EXPIRY (read-repair)
// ============================================================================

// Reconcile persists the expiry of a lapsed PENDING booking and returns the
// current booking. Bookings that need no repair are returned unchanged.
func (s *BookingLifecycleService) Reconcile(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	now := s.clock.Now()
	if !b.NeedsExpiry(now) {
		return b, nil
	}

	swapped, err := s.bookings.CompareAndSwapStatus(ctx, b.ID, models.BookingStatusPending, models.BookingStatusExpired, now)
	if err != nil {
		return nil, internalError("failed to expire booking", err)
	}
	if !swapped {
		// Another caller moved the booking first.
		current, err := s.loadBooking(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		return current, nil
	}

	expired := b.WithStatus(models.BookingStatusExpired, now)
	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"from":       models.BookingStatusPending,
		"to":         models.BookingStatusExpired,
	}).Info("Booking expired")

	s.publish(ctx, newLifecycleEvent(EventBookingExpired, expired, nil, now))
	s.afterPaymentClosed(ctx, models.Actor{}, expired, models.PaymentEventExpired, now)
	return expired, nil
}

// ============================================================================
// READ
// ============================================================================

// GetBooking returns a booking visible to the actor
func (s *BookingLifecycleService) GetBooking(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Booking, error) {
	b, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeBooking(ctx, actor, ActionReadBooking, b); err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, b)
}

// ListBookings lists the bookings in the actor's scope, optionally narrowed to
// a station or to effective statuses
func (s *BookingLifecycleService) ListBookings(ctx context.Context, actor models.Actor, stationID *uuid.UUID, statuses []models.BookingStatus, limit, offset int) ([]*models.Booking, error) {
	filter := s.gate.BookingScope(actor)
	action := ActionReadAllBookings
	if filter.UserID != nil {
		action = ActionReadOwnBookings
	}
	if !s.gate.Authorize(actor, action, OwnerHint{UserID: actor.ID}) {
		return nil, newLifecycleError(CodeForbidden, "not allowed to list bookings")
	}

	filter.StationID = stationID
	filter.Statuses = statuses
	filter.Limit = limit
	filter.Offset = offset
	return s.listReconciled(ctx, filter)
}

// MyBookings lists the actor's own bookings
func (s *BookingLifecycleService) MyBookings(ctx context.Context, actor models.Actor, statuses []models.BookingStatus, limit, offset int) ([]*models.Booking, error) {
	if !s.gate.Authorize(actor, ActionReadOwnBookings, OwnerHint{UserID: actor.ID}) {
		return nil, newLifecycleError(CodeForbidden, "not allowed to list bookings")
	}
	id := actor.ID
	return s.listReconciled(ctx, models.BookingFilter{
		UserID:   &id,
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	})
}

// StationBookings lists the bookings of one station for its owner
func (s *BookingLifecycleService) StationBookings(ctx context.Context, actor models.Actor, stationID uuid.UUID, statuses []models.BookingStatus, limit, offset int) ([]*models.Booking, error) {
	station, err := s.directory.FindStation(ctx, stationID)
	if err != nil {
		return nil, internalError("failed to look up station", err)
	}
	if station == nil {
		return nil, newLifecycleError(CodeNotFound, "station not found")
	}
	if !s.gate.Authorize(actor, ActionReadAllBookings, OwnerHint{StationOwnerID: station.OwnerID}) {
		return nil, newLifecycleError(CodeForbidden, "not allowed to list bookings of this station")
	}

	filter := s.gate.BookingScope(actor)
	filter.StationID = &stationID
	filter.Statuses = statuses
	filter.Limit = limit
	filter.Offset = offset
	return s.listReconciled(ctx, filter)
}

// StationSummary aggregates bookings per station in the actor's scope
func (s *BookingLifecycleService) StationSummary(ctx context.Context, actor models.Actor) ([]models.StationSummary, error) {
	if !s.gate.Authorize(actor, ActionReadStationSummary, OwnerHint{StationOwnerID: actor.ID}) {
		return nil, newLifecycleError(CodeForbidden, "not allowed to read station summaries")
	}
	scope := s.gate.BookingScope(actor)
	summaries, err := s.bookings.StationSummaries(ctx, scope.StationOwnerID, s.clock.Now())
	if err != nil {
		return nil, internalError("failed to summarize stations", err)
	}
	return summaries, nil
}

// listReconciled pages over effective statuses in the store, then persists
// the expiry of any lapsed booking on the returned page.
func (s *BookingLifecycleService) listReconciled(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	filter.Now = s.clock.Now()

	bookings, err := s.bookings.ListBookings(ctx, filter)
	if err != nil {
		return nil, internalError("failed to list bookings", err)
	}

	out := make([]*models.Booking, 0, len(bookings))
	for _, b := range bookings {
		current, err := s.Reconcile(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, current)
	}
	return out, nil
}

// ============================================================================
// CANCEL / COMPLETE
// ============================================================================

// Cancel cancels a PENDING booking of the actor
func (s *BookingLifecycleService) Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Booking, error) {
	unlock, err := s.lockBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeBooking(ctx, actor, ActionCancel, b); err != nil {
		return nil, err
	}
	if b, err = s.Reconcile(ctx, b); err != nil {
		return nil, err
	}

	if b.Status == models.BookingStatusExpired {
		return nil, newLifecycleError(CodeBookingExpired, "booking has expired").withBooking(b)
	}
	if !b.Status.CanTransitionTo(models.BookingStatusCancelled) {
		return nil, newLifecycleError(CodeInvalidState, "only pending bookings can be cancelled").withBooking(b)
	}

	now := s.clock.Now()
	swapped, err := s.bookings.CompareAndSwapStatus(ctx, b.ID, models.BookingStatusPending, models.BookingStatusCancelled, now)
	if err != nil {
		return nil, internalError("failed to cancel booking", err)
	}
	if !swapped {
		return nil, s.staleBookingError(ctx, b.ID)
	}

	cancelled := b.WithStatus(models.BookingStatusCancelled, now)
	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"from":       models.BookingStatusPending,
		"to":         models.BookingStatusCancelled,
	}).Info("Booking cancelled")

	s.publish(ctx, newLifecycleEvent(EventBookingCancelled, cancelled, nil, now))
	s.afterPaymentClosed(ctx, actor, cancelled, models.PaymentEventFailed, now)
	return cancelled, nil
}

// Complete marks a CONFIRMED booking as finished
func (s *BookingLifecycleService) Complete(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Booking, error) {
	unlock, err := s.lockBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeBooking(ctx, actor, ActionComplete, b); err != nil {
		return nil, err
	}
	if b, err = s.Reconcile(ctx, b); err != nil {
		return nil, err
	}
	if !b.Status.CanTransitionTo(models.BookingStatusCompleted) {
		return nil, newLifecycleError(CodeInvalidState, "only confirmed bookings can be completed").withBooking(b)
	}

	now := s.clock.Now()
	swapped, err := s.bookings.CompareAndSwapStatus(ctx, b.ID, models.BookingStatusConfirmed, models.BookingStatusCompleted, now)
	if err != nil {
		return nil, internalError("failed to complete booking", err)
	}
	if !swapped {
		return nil, s.staleBookingError(ctx, b.ID)
	}

	completed := b.WithStatus(models.BookingStatusCompleted, now)
	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"from":       models.BookingStatusConfirmed,
		"to":         models.BookingStatusCompleted,
	}).Info("Booking completed")

	s.publish(ctx, newLifecycleEvent(EventBookingCompleted, completed, nil, now))
	return completed, nil
}

// ============================================================================
// PAYMENT
// ============================================================================

// InitiatePay opens a gateway order for a PENDING booking. An existing CREATED
// payment is reused with a fresh order reference. With confirmImmediately the
// order is confirmed inline under the same booking lock.
func (s *BookingLifecycleService) InitiatePay(ctx context.Context, actor models.Actor, bookingID uuid.UUID, confirmImmediately bool) (*models.PaymentResult, error) {
	unlock, err := s.lockBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeBooking(ctx, actor, ActionPay, b); err != nil {
		return nil, err
	}
	if b, err = s.Reconcile(ctx, b); err != nil {
		return nil, err
	}

	existing, err := s.payments.GetPaymentByBooking(ctx, b.ID)
	if err != nil {
		return nil, internalError("failed to load payment", err)
	}
	if err := payableError(b, existing); err != nil {
		return nil, err
	}

	started := s.clock.Now()
	orderRef, err := callGateway(ctx, s.config.GatewayTimeout, func(ctx context.Context) (string, error) {
		return s.gateway.OpenOrder(ctx, b.Amount, b.ID.String())
	})
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", b.ID).Warn("Gateway failed to open order")
		s.audit.record(ctx, paymentEvent{
			eventType: models.PaymentEventGatewayError, source: models.PaymentSourceGateway,
			actor: actor, booking: b, payment: existing, started: started, at: s.clock.Now(), err: err,
		})
		return nil, newLifecycleError(CodeGateway, "payment gateway unavailable, retry later").
			withBooking(b).withPayment(existing).wrap(err)
	}

	now := s.clock.Now()
	payment, err := s.payments.OpenPayment(ctx, &models.Payment{
		ID:             uuid.New(),
		BookingID:      b.ID,
		Amount:         b.Amount,
		GatewayOrderID: &orderRef,
		Status:         models.PaymentStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, now)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrBookingNotPending):
			return nil, s.staleBookingError(ctx, b.ID)
		case errors.Is(err, database.ErrPaymentClosed):
			return nil, newLifecycleError(CodeInvalidState, "booking payment is already closed").withBooking(b)
		default:
			return nil, internalError("failed to open payment", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"payment_id": payment.ID,
		"order_ref":  orderRef,
		"reused":     existing != nil,
	}).Info("Payment order opened")
	s.audit.record(ctx, paymentEvent{
		eventType: models.PaymentEventOrderCreated, source: models.PaymentSourceUser,
		actor: actor, booking: b, payment: payment, started: started, at: now,
	})

	if !confirmImmediately {
		return models.NewPaymentResult(payment, b), nil
	}
	return s.confirmLocked(ctx, actor, b, payment)
}

// ConfirmPay settles the payment's gateway order and confirms its booking.
// Confirming an already PAID payment returns the stored result without
// contacting the gateway.
func (s *BookingLifecycleService) ConfirmPay(ctx context.Context, actor models.Actor, paymentID uuid.UUID) (*models.PaymentResult, error) {
	p, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockBooking(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock; a concurrent confirm may have just finished.
	if p, err = s.loadPayment(ctx, paymentID); err != nil {
		return nil, err
	}
	b, err := s.loadBooking(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeBooking(ctx, actor, ActionConfirm, b); err != nil {
		return nil, err
	}
	if b, err = s.Reconcile(ctx, b); err != nil {
		return nil, err
	}

	if p.Status == models.PaymentStatusPaid {
		s.audit.record(ctx, paymentEvent{
			eventType: models.PaymentEventReplayed, source: models.PaymentSourceUser,
			actor: actor, booking: b, payment: p, at: s.clock.Now(), duplicate: true,
		})
		return models.NewPaymentResult(p, b), nil
	}

	// Reconcile may have failed the payment alongside the booking.
	if b.Status == models.BookingStatusExpired {
		if p, err = s.loadPayment(ctx, paymentID); err != nil {
			return nil, err
		}
	}
	return s.confirmLocked(ctx, actor, b, p)
}

// confirmLocked runs the confirmation of p for the reconciled booking b.
// The caller holds the booking lock.
func (s *BookingLifecycleService) confirmLocked(ctx context.Context, actor models.Actor, b *models.Booking, p *models.Payment) (*models.PaymentResult, error) {
	switch b.Status {
	case models.BookingStatusPending:
	case models.BookingStatusExpired:
		p = s.failPayment(ctx, actor, b, p)
		return nil, newLifecycleError(CodeBookingExpired, "booking has expired").withBooking(b).withPayment(p)
	default:
		return nil, newLifecycleError(CodeInvalidState, "booking is not awaiting payment").withBooking(b).withPayment(p)
	}
	if p.Status != models.PaymentStatusCreated {
		return nil, newLifecycleError(CodeInvalidState, "payment cannot be confirmed").withBooking(b).withPayment(p)
	}

	started := s.clock.Now()
	paymentRef, err := callGateway(ctx, s.config.GatewayTimeout, func(ctx context.Context) (string, error) {
		return s.gateway.ConfirmOrder(ctx, p.OrderRef())
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": b.ID,
			"payment_id": p.ID,
		}).Warn("Gateway failed to confirm order")
		s.audit.record(ctx, paymentEvent{
			eventType: models.PaymentEventGatewayError, source: models.PaymentSourceGateway,
			actor: actor, booking: b, payment: p, started: started, at: s.clock.Now(), err: err,
		})
		return nil, newLifecycleError(CodeGateway, "payment gateway unavailable, retry later").
			withBooking(b).withPayment(p).wrap(err)
	}

	now := s.clock.Now()
	confirmed, err := s.payments.ConfirmPayment(ctx, p.ID, b.ID, paymentRef, now)
	if err != nil {
		return nil, internalError("failed to confirm payment", err)
	}
	if !confirmed {
		return s.resolveRejectedConfirm(ctx, actor, b.ID, p.ID)
	}

	booking := b.WithStatus(models.BookingStatusConfirmed, now)
	paid := *p
	paid.Status = models.PaymentStatusPaid
	paid.GatewayPaymentID = &paymentRef
	paid.UpdatedAt = now

	s.logger.WithFields(logrus.Fields{
		"booking_id":  b.ID,
		"payment_id":  p.ID,
		"payment_ref": paymentRef,
		"from":        models.BookingStatusPending,
		"to":          models.BookingStatusConfirmed,
	}).Info("Booking confirmed")
	s.audit.record(ctx, paymentEvent{
		eventType: models.PaymentEventSuccess, source: models.PaymentSourceGateway,
		actor: actor, booking: booking, payment: &paid, started: started, at: now,
	})
	s.publish(ctx, newLifecycleEvent(EventBookingConfirmed, booking, &paid, now))

	return models.NewPaymentResult(&paid, booking), nil
}

// resolveRejectedConfirm explains why the atomic confirm write matched no rows
func (s *BookingLifecycleService) resolveRejectedConfirm(ctx context.Context, actor models.Actor, bookingID, paymentID uuid.UUID) (*models.PaymentResult, error) {
	b, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b, err = s.Reconcile(ctx, b); err != nil {
		return nil, err
	}
	p, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch {
	case p.Status == models.PaymentStatusPaid && b.Status == models.BookingStatusConfirmed:
		return models.NewPaymentResult(p, b), nil
	case b.Status == models.BookingStatusExpired:
		p = s.failPayment(ctx, actor, b, p)
		s.logger.WithFields(logrus.Fields{
			"booking_id": b.ID,
			"payment_id": p.ID,
		}).Warn("Booking expired while the gateway confirmed its payment")
		return nil, newLifecycleError(CodeBookingExpired, "booking has expired").withBooking(b).withPayment(p)
	default:
		return nil, newLifecycleError(CodeInvalidState, "booking changed during confirmation").withBooking(b).withPayment(p)
	}
}

// failPayment moves a CREATED payment of an expired booking to FAILED and
// returns the current payment
func (s *BookingLifecycleService) failPayment(ctx context.Context, actor models.Actor, b *models.Booking, p *models.Payment) *models.Payment {
	if p == nil || p.Status != models.PaymentStatusCreated {
		return p
	}
	now := s.clock.Now()
	failed, err := s.payments.FailPayment(ctx, p.ID, now)
	if err != nil {
		s.logger.WithError(err).WithField("payment_id", p.ID).Error("Failed to mark payment as failed")
		return p
	}
	if !failed {
		if current, err := s.payments.GetPayment(ctx, p.ID); err == nil && current != nil {
			return current
		}
		return p
	}

	out := *p
	out.Status = models.PaymentStatusFailed
	out.UpdatedAt = now
	s.audit.record(ctx, paymentEvent{
		eventType: models.PaymentEventFailed, source: models.PaymentSourceSystem,
		actor: actor, booking: b, payment: &out, at: now,
	})
	s.publish(ctx, newLifecycleEvent(EventPaymentFailed, b, &out, now))
	return &out
}

// afterPaymentClosed reports the payment a booking transition failed as a side effect
func (s *BookingLifecycleService) afterPaymentClosed(ctx context.Context, actor models.Actor, b *models.Booking, eventType models.PaymentEventType, at time.Time) {
	p, err := s.payments.GetPaymentByBooking(ctx, b.ID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", b.ID).Warn("Failed to load payment after transition")
		return
	}
	if p == nil || p.Status != models.PaymentStatusFailed {
		return
	}
	s.audit.record(ctx, paymentEvent{
		eventType: eventType, source: models.PaymentSourceSystem,
		actor: actor, booking: b, payment: p, at: at,
	})
	s.publish(ctx, newLifecycleEvent(EventPaymentFailed, b, p, at))
}

// ListPayments lists the payments in the actor's scope
func (s *BookingLifecycleService) ListPayments(ctx context.Context, actor models.Actor, bookingID *uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	if !s.gate.Authorize(actor, ActionReadPayments, OwnerHint{UserID: actor.ID}) {
		return nil, newLifecycleError(CodeForbidden, "not allowed to list payments")
	}
	filter := s.gate.PaymentScope(actor)
	filter.BookingID = bookingID
	filter.Limit = limit
	filter.Offset = offset

	payments, err := s.payments.ListPayments(ctx, filter)
	if err != nil {
		return nil, internalError("failed to list payments", err)
	}
	return payments, nil
}

// GetPayment returns a payment with the reconciled status of its booking
func (s *BookingLifecycleService) GetPayment(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.PaymentResult, error) {
	p, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := s.loadBooking(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeBooking(ctx, actor, ActionReadBooking, b); err != nil {
		return nil, err
	}
	reconciled, err := s.Reconcile(ctx, b)
	if err != nil {
		return nil, err
	}
	if reconciled.Status != b.Status {
		if p, err = s.loadPayment(ctx, id); err != nil {
			return nil, err
		}
	}
	return models.NewPaymentResult(p, reconciled), nil
}

// PaymentHistory returns the payment audit trail of a booking visible to the actor
func (s *BookingLifecycleService) PaymentHistory(ctx context.Context, actor models.Actor, bookingID uuid.UUID) ([]models.PaymentAudit, error) {
	b, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeBooking(ctx, actor, ActionReadBooking, b); err != nil {
		return nil, err
	}
	audits, err := s.audit.History(ctx, b.ID)
	if err != nil {
		return nil, internalError("failed to load payment history", err)
	}
	return audits, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *BookingLifecycleService) loadBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, internalError("failed to load booking", err)
	}
	if b == nil {
		return nil, newLifecycleError(CodeNotFound, "booking not found")
	}
	return b, nil
}

func (s *BookingLifecycleService) loadPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := s.payments.GetPayment(ctx, id)
	if err != nil {
		return nil, internalError("failed to load payment", err)
	}
	if p == nil {
		return nil, newLifecycleError(CodeNotFound, "payment not found")
	}
	return p, nil
}

// authorizeBooking asks the gate whether actor may perform action on b
func (s *BookingLifecycleService) authorizeBooking(ctx context.Context, actor models.Actor, action Action, b *models.Booking) error {
	hint := OwnerHint{UserID: b.UserID}
	station, err := s.directory.FindStation(ctx, b.StationID)
	if err != nil {
		return internalError("failed to look up station", err)
	}
	if station != nil {
		hint.StationOwnerID = station.OwnerID
	}
	if !s.gate.Authorize(actor, action, hint) {
		return newLifecycleError(CodeForbidden, "not allowed to access this booking")
	}
	return nil
}

func (s *BookingLifecycleService) lockBooking(ctx context.Context, id uuid.UUID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, bookingLockKey(id))
	if err != nil {
		return nil, internalError("failed to lock booking", err)
	}
	return unlock, nil
}

// staleBookingError re-reads a booking whose conditional write was rejected
// and reports its current state
func (s *BookingLifecycleService) staleBookingError(ctx context.Context, id uuid.UUID) error {
	b, err := s.loadBooking(ctx, id)
	if err != nil {
		return err
	}
	if b, err = s.Reconcile(ctx, b); err != nil {
		return err
	}
	if b.Status == models.BookingStatusExpired {
		return newLifecycleError(CodeBookingExpired, "booking has expired").withBooking(b)
	}
	return newLifecycleError(CodeInvalidState, "booking changed concurrently").withBooking(b)
}

// payableError reports why a reconciled booking cannot be paid, or nil
func payableError(b *models.Booking, existing *models.Payment) error {
	switch b.Status {
	case models.BookingStatusPending:
	case models.BookingStatusExpired:
		return newLifecycleError(CodeBookingExpired, "booking has expired").withBooking(b).withPayment(existing)
	case models.BookingStatusConfirmed, models.BookingStatusCompleted:
		return newLifecycleError(CodeAlreadyConfirmed, "booking is already paid").withBooking(b).withPayment(existing)
	default:
		return newLifecycleError(CodeInvalidState, "booking cannot be paid").withBooking(b).withPayment(existing)
	}
	if existing != nil && existing.Status != models.PaymentStatusCreated {
		return newLifecycleError(CodeInvalidState, "booking payment is already closed").withBooking(b).withPayment(existing)
	}
	return nil
}

// publish delivers an event without failing the committed transition
func (s *BookingLifecycleService) publish(ctx context.Context, event LifecycleEvent) {
	if s.events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.EventTimeout)
	defer cancel()
	if err := s.events.Publish(pubCtx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event":      event.Type,
			"booking_id": event.BookingID,
		}).Warn("Failed to publish lifecycle event")
	}
}
