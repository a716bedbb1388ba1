package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated    PaymentEventType = "payment_initiated"
	PaymentEventOrderCreated PaymentEventType = "order_created"
	PaymentEventSuccess      PaymentEventType = "payment_success"
	PaymentEventFailed       PaymentEventType = "payment_failed"
	PaymentEventReplayed     PaymentEventType = "payment_replayed" // confirm on an already paid booking
	PaymentEventGatewayError PaymentEventType = "gateway_error"
	PaymentEventExpired      PaymentEventType = "booking_expired"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceUser    PaymentEventSource = "user"
	PaymentSourceGateway PaymentEventSource = "gateway"
	PaymentSourceSystem  PaymentEventSource = "system"
)

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	BookingID   uuid.UUID          `json:"booking_id" db:"booking_id"`
	PaymentID   *uuid.UUID         `json:"payment_id,omitempty" db:"payment_id"`
	ActorID     *uuid.UUID         `json:"actor_id,omitempty" db:"actor_id"`
	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	Amount           *float64 `json:"amount,omitempty" db:"amount"`
	PaymentStatus    *string  `json:"payment_status,omitempty" db:"payment_status"`
	GatewayOrderID   *string  `json:"gateway_order_id,omitempty" db:"gateway_order_id"`
	GatewayPaymentID *string  `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`

	ErrorMessage     *string `json:"error_message,omitempty" db:"error_message"`
	ProcessingTimeMs *int    `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool    `json:"is_duplicate" db:"is_duplicate"`

	// Request metadata
	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType *string `json:"device_type,omitempty" db:"device_type"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(bookingID uuid.UUID, eventType PaymentEventType, source PaymentEventSource, at time.Time) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		BookingID:   bookingID,
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   at,
	}
}

// SetPayment copies the payment identifiers, amount and status into the entry
func (pa *PaymentAudit) SetPayment(p *Payment) *PaymentAudit {
	if p == nil {
		return pa
	}
	id := p.ID
	amount := p.Amount
	status := string(p.Status)
	pa.PaymentID = &id
	pa.Amount = &amount
	pa.PaymentStatus = &status
	pa.GatewayOrderID = p.GatewayOrderID
	pa.GatewayPaymentID = p.GatewayPaymentID
	return pa
}

// SetActor sets the user who triggered the event
func (pa *PaymentAudit) SetActor(actorID uuid.UUID) *PaymentAudit {
	pa.ActorID = &actorID
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetRequestInfo sets request metadata
func (pa *PaymentAudit) SetRequestInfo(info RequestInfo) *PaymentAudit {
	if info.IPAddress != "" {
		pa.IPAddress = &info.IPAddress
	}
	if info.UserAgent != "" {
		pa.UserAgent = &info.UserAgent
	}
	if info.DeviceType != "" {
		pa.DeviceType = &info.DeviceType
	}
	return pa
}

// SetProcessingTime sets the elapsed time between start and end
func (pa *PaymentAudit) SetProcessingTime(start, end time.Time) *PaymentAudit {
	durationMs := int(end.Sub(start).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// MarkAsDuplicate marks this event as a duplicate
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}

// RequestInfo carries client details of the HTTP request behind an operation
type RequestInfo struct {
	IPAddress  string
	UserAgent  string
	DeviceType string
}
