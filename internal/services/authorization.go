package services

import (
	"github.com/google/uuid"

	"github.com/chargeslot/booking-backend/internal/models"
)

// Action is an operation subject to authorization
type Action string

const (
	ActionCreateBooking      Action = "CreateBooking"
	ActionReadOwnBookings    Action = "ReadOwnBookings"
	ActionReadAllBookings    Action = "ReadAllBookings"
	ActionReadBooking        Action = "ReadBooking"
	ActionPay                Action = "Pay"
	ActionConfirm            Action = "Confirm"
	ActionCancel             Action = "Cancel"
	ActionComplete           Action = "Complete"
	ActionReadPayments       Action = "ReadPayments"
	ActionReadStationSummary Action = "ReadStationSummary"
)

// OwnerHint identifies who owns the resource an action targets.
// Zero values mean the action targets no single resource.
type OwnerHint struct {
	UserID         uuid.UUID // booking holder
	StationOwnerID uuid.UUID // owner of the booked station
}

// Authorizer decides whether an actor may perform an action and which
// records a listing may return for that actor.
type Authorizer interface {
	Authorize(actor models.Actor, action Action, owner OwnerHint) bool
	BookingScope(actor models.Actor) models.BookingFilter
	PaymentScope(actor models.Actor) models.PaymentFilter
}

// RoleGate authorizes by the admin / evowner / chargerowner roles.
//   - admin: everything, unscoped listings
//   - evowner: books stations and acts on own bookings
//   - chargerowner: reads and completes bookings of owned stations
type RoleGate struct{}

// NewRoleGate creates the role based authorizer
func NewRoleGate() *RoleGate {
	return &RoleGate{}
}

// Authorize implements Authorizer
func (g *RoleGate) Authorize(actor models.Actor, action Action, owner OwnerHint) bool {
	if actor.ID == uuid.Nil || !actor.Role.IsValid() {
		return false
	}
	if actor.IsAdmin() {
		return true
	}

	switch action {
	case ActionCreateBooking:
		return actor.Role == models.RoleEVOwner
	case ActionReadOwnBookings, ActionReadPayments:
		return true
	case ActionReadAllBookings, ActionReadStationSummary:
		return actor.Role == models.RoleChargerOwner &&
			(owner.StationOwnerID == uuid.Nil || owner.StationOwnerID == actor.ID)
	case ActionReadBooking:
		return owner.UserID == actor.ID ||
			(actor.Role == models.RoleChargerOwner && owner.StationOwnerID == actor.ID)
	case ActionPay, ActionConfirm, ActionCancel:
		return owner.UserID == actor.ID
	case ActionComplete:
		return actor.Role == models.RoleChargerOwner && owner.StationOwnerID == actor.ID
	default:
		return false
	}
}

// BookingScope implements Authorizer
func (g *RoleGate) BookingScope(actor models.Actor) models.BookingFilter {
	id := actor.ID
	switch actor.Role {
	case models.RoleAdmin:
		return models.BookingFilter{}
	case models.RoleChargerOwner:
		return models.BookingFilter{StationOwnerID: &id}
	default:
		return models.BookingFilter{UserID: &id}
	}
}

// PaymentScope implements Authorizer
func (g *RoleGate) PaymentScope(actor models.Actor) models.PaymentFilter {
	id := actor.ID
	switch actor.Role {
	case models.RoleAdmin:
		return models.PaymentFilter{}
	case models.RoleChargerOwner:
		return models.PaymentFilter{StationOwnerID: &id}
	default:
		return models.PaymentFilter{UserID: &id}
	}
}
