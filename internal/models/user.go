package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies what a caller may see and do
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleEVOwner      Role = "evowner"      // drives an EV, books stations
	RoleChargerOwner Role = "chargerowner" // owns charging stations
)

// IsValid returns true if the role is recognized
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleEVOwner, RoleChargerOwner:
		return true
	}
	return false
}

// User is the subset of the identity record this service relies on
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Actor is the authenticated caller of a lifecycle operation
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsAdmin returns true if the actor has the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
