package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/models"
	"github.com/chargeslot/booking-backend/internal/services"
)

// OwnerHandler serves the station owner dashboard
type OwnerHandler struct {
	lifecycle *services.BookingLifecycleService
	clock     services.Clock
	logger    *logrus.Logger
}

// NewOwnerHandler creates a new owner handler
func NewOwnerHandler(lifecycle *services.BookingLifecycleService, clock services.Clock, logger *logrus.Logger) *OwnerHandler {
	return &OwnerHandler{lifecycle: lifecycle, clock: clock, logger: logger}
}

// GetStationSummary handles GET /api/v1/owner/stations/summary
func (h *OwnerHandler) GetStationSummary(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	summaries, err := h.lifecycle.StationSummary(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var revenue float64
	for _, s := range summaries {
		revenue += s.TotalRevenue
	}
	c.JSON(http.StatusOK, gin.H{
		"stations":      summaries,
		"total":         len(summaries),
		"total_revenue": models.RoundAmount(revenue),
	})
}

// GetStationBookings handles GET /api/v1/owner/stations/:station_id/bookings
func (h *OwnerHandler) GetStationBookings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	stationID, ok := parseUUIDParam(c, "station_id")
	if !ok {
		return
	}
	statuses, ok := parseStatuses(c)
	if !ok {
		return
	}
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	bookings, err := h.lifecycle.StationBookings(c.Request.Context(), actor, stationID, statuses, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	now := h.clock.Now()
	out := make([]models.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, models.NewBookingResponse(b, now))
	}
	c.JSON(http.StatusOK, gin.H{
		"station_id": stationID,
		"bookings":   out,
		"total":      len(out),
	})
}
