package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/models"
)

// LifecycleEventType is the routing key of a lifecycle event
type LifecycleEventType string

const (
	EventBookingCreated   LifecycleEventType = "booking.created"
	EventBookingConfirmed LifecycleEventType = "booking.confirmed"
	EventBookingExpired   LifecycleEventType = "booking.expired"
	EventBookingCancelled LifecycleEventType = "booking.cancelled"
	EventBookingCompleted LifecycleEventType = "booking.completed"
	EventPaymentFailed    LifecycleEventType = "payment.failed"
)

// LifecycleEvent is published after a transition has been committed
type LifecycleEvent struct {
	Type          LifecycleEventType   `json:"type"`
	BookingID     uuid.UUID            `json:"booking_id"`
	UserID        uuid.UUID            `json:"user_id"`
	StationID     uuid.UUID            `json:"station_id"`
	BookingStatus models.BookingStatus `json:"booking_status"`
	PaymentID     *uuid.UUID           `json:"payment_id,omitempty"`
	PaymentStatus models.PaymentStatus `json:"payment_status,omitempty"`
	Amount        float64              `json:"amount"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

func newLifecycleEvent(eventType LifecycleEventType, b *models.Booking, p *models.Payment, at time.Time) LifecycleEvent {
	ev := LifecycleEvent{
		Type:          eventType,
		BookingID:     b.ID,
		UserID:        b.UserID,
		StationID:     b.StationID,
		BookingStatus: b.Status,
		Amount:        b.Amount,
		OccurredAt:    at,
	}
	if p != nil {
		id := p.ID
		ev.PaymentID = &id
		ev.PaymentStatus = p.Status
	}
	return ev
}

// EventPublisher delivers lifecycle events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event LifecycleEvent) error
}

// JSONPublisher is satisfied by *mq.Publisher
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// BrokerEventPublisher publishes lifecycle events to a message broker
type BrokerEventPublisher struct {
	publisher JSONPublisher
}

// NewBrokerEventPublisher creates an event publisher backed by a broker
func NewBrokerEventPublisher(publisher JSONPublisher) *BrokerEventPublisher {
	return &BrokerEventPublisher{publisher: publisher}
}

// Publish implements EventPublisher
func (p *BrokerEventPublisher) Publish(ctx context.Context, event LifecycleEvent) error {
	return p.publisher.PublishJSON(ctx, string(event.Type), event)
}

// LogEventPublisher writes lifecycle events to the log. Used when no broker is configured.
type LogEventPublisher struct {
	logger *logrus.Logger
}

// NewLogEventPublisher creates a log only event publisher
func NewLogEventPublisher(logger *logrus.Logger) *LogEventPublisher {
	return &LogEventPublisher{logger: logger}
}

// Publish implements EventPublisher
func (p *LogEventPublisher) Publish(ctx context.Context, event LifecycleEvent) error {
	p.logger.WithFields(logrus.Fields{
		"event":          event.Type,
		"booking_id":     event.BookingID,
		"booking_status": event.BookingStatus,
	}).Info("Lifecycle event")
	return nil
}
