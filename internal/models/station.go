package models

import (
	"time"

	"github.com/google/uuid"
)

// Station is the read-only view of a charging station this service needs.
// Stations are managed by the catalog service; bookings only reference them.
type Station struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Price     float64   `json:"price" db:"price"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
