package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/models"
	"github.com/chargeslot/booking-backend/internal/utils"
)

type requestInfoKey struct{}

// WithRequestInfo attaches client request details to ctx for the payment audit
func WithRequestInfo(ctx context.Context, info models.RequestInfo) context.Context {
	if info.DeviceType == "" && info.UserAgent != "" {
		info.DeviceType = utils.ParseUserAgent(info.UserAgent).DeviceType
	}
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the request details attached by WithRequestInfo
func RequestInfoFrom(ctx context.Context) models.RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(models.RequestInfo)
	return info
}

// AuditService writes the payment audit trail. Audit failures are logged and
// never fail the operation being audited.
type AuditService struct {
	store  PaymentAuditor
	logger *logrus.Logger
}

// NewAuditService creates a new audit service; store may be nil to only log
func NewAuditService(store PaymentAuditor, logger *logrus.Logger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

// paymentEvent describes one audited payment step
type paymentEvent struct {
	eventType models.PaymentEventType
	source    models.PaymentEventSource
	actor     models.Actor
	booking   *models.Booking
	payment   *models.Payment
	started   time.Time
	at        time.Time
	err       error
	duplicate bool
}

func (s *AuditService) record(ctx context.Context, ev paymentEvent) {
	if s == nil || ev.booking == nil {
		return
	}

	audit := models.NewPaymentAudit(ev.booking.ID, ev.eventType, ev.source, ev.at).
		SetPayment(ev.payment).
		SetRequestInfo(RequestInfoFrom(ctx))
	if ev.actor.ID != uuid.Nil {
		audit.SetActor(ev.actor.ID)
	}
	if !ev.started.IsZero() {
		audit.SetProcessingTime(ev.started, ev.at)
	}
	if ev.err != nil {
		audit.SetError(ev.err.Error())
	}
	if ev.duplicate {
		audit.MarkAsDuplicate()
	}

	if s.store == nil {
		s.logger.WithFields(logrus.Fields{
			"booking_id": ev.booking.ID,
			"event_type": ev.eventType,
		}).Debug("Payment audit (no store)")
		return
	}

	// Audit rows must survive a cancelled request context.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.Log(writeCtx, audit); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": ev.booking.ID,
			"event_type": ev.eventType,
		}).Error("Failed to write payment audit")
	}
}

// History returns the audit trail of a booking, oldest first
func (s *AuditService) History(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentAudit, error) {
	if s == nil || s.store == nil {
		return []models.PaymentAudit{}, nil
	}
	return s.store.ListByBooking(ctx, bookingID)
}
