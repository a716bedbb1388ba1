package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chargeslot/booking-backend/internal/models"
)

// DirectoryRepository reads the stations and users tables owned by the catalog
// and identity services
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository creates a new DirectoryRepository
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// FindStation retrieves a station by ID, nil when it does not exist
func (r *DirectoryRepository) FindStation(ctx context.Context, stationID uuid.UUID) (*models.Station, error) {
	var station models.Station
	err := r.db.GetContext(ctx, &station, `
		SELECT id, owner_id, name, price, is_active, created_at
		FROM stations WHERE id = $1`, stationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	return &station, nil
}

// UserExists reports whether a user with the given ID exists
func (r *DirectoryRepository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}
