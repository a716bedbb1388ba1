package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a booking payment
// Matches the CHECK constraint on payments.status
type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "CREATED"  // Gateway order opened, not yet paid
	PaymentStatusPaid     PaymentStatus = "PAID"     // Gateway confirmed the charge
	PaymentStatusFailed   PaymentStatus = "FAILED"   // Booking lapsed or was cancelled before payment
	PaymentStatusRefunded PaymentStatus = "REFUNDED" // Charge returned to the user
)

// Payment is the simulated monetary transaction of a booking (at most one per booking)
type Payment struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	BookingID        uuid.UUID     `json:"booking_id" db:"booking_id"`
	Amount           float64       `json:"amount" db:"amount"`
	GatewayOrderID   *string       `json:"gateway_order_id,omitempty" db:"gateway_order_id"`
	GatewayPaymentID *string       `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`
	Status           PaymentStatus `json:"status" db:"status"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// OrderRef returns the gateway order reference or an empty string
func (p *Payment) OrderRef() string {
	if p.GatewayOrderID == nil {
		return ""
	}
	return *p.GatewayOrderID
}

// PaymentFilter narrows a payment listing. Nil fields are unrestricted.
type PaymentFilter struct {
	UserID         *uuid.UUID
	StationOwnerID *uuid.UUID
	BookingID      *uuid.UUID
	Limit          int
	Offset         int
}

// InitiatePaymentRequest represents the request body of POST /payments
type InitiatePaymentRequest struct {
	BookingID string `json:"booking_id" binding:"required,uuid"`
}

// PaymentResult is returned by the pay and confirm operations
type PaymentResult struct {
	PaymentID        uuid.UUID     `json:"payment_id"`
	BookingID        uuid.UUID     `json:"booking_id"`
	GatewayOrderID   *string       `json:"payment_order_id"`
	GatewayPaymentID *string       `json:"gateway_payment_id"`
	Amount           float64       `json:"amount"`
	Status           PaymentStatus `json:"status"`
	BookingStatus    BookingStatus `json:"booking_status"`
	ExpiresAt        time.Time     `json:"expires_at"`
}

// NewPaymentResult combines a payment with the booking it belongs to
func NewPaymentResult(p *Payment, b *Booking) *PaymentResult {
	return &PaymentResult{
		PaymentID:        p.ID,
		BookingID:        p.BookingID,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		Amount:           p.Amount,
		Status:           p.Status,
		BookingStatus:    b.Status,
		ExpiresAt:        b.ExpiresAt,
	}
}
