package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/models"
	"github.com/chargeslot/booking-backend/internal/services"
)

// BookingHandler handles booking-related HTTP requests
type BookingHandler struct {
	lifecycle *services.BookingLifecycleService
	clock     services.Clock
	logger    *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(lifecycle *services.BookingLifecycleService, clock services.Clock, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		lifecycle: lifecycle,
		clock:     clock,
		logger:    logger,
	}
}

func (h *BookingHandler) respond(c *gin.Context, status int, b *models.Booking) {
	c.JSON(status, models.NewBookingResponse(b, h.clock.Now()))
}

func (h *BookingHandler) respondList(c *gin.Context, bookings []*models.Booking) {
	now := h.clock.Now()
	out := make([]models.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, models.NewBookingResponse(b, now))
	}
	c.JSON(http.StatusOK, gin.H{
		"bookings": out,
		"total":    len(out),
	})
}

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	booking, err := h.lifecycle.CreateBooking(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respond(c, http.StatusCreated, booking)
}

// ListBookings handles GET /api/v1/bookings (?station_id=, ?status=, ?limit=, ?offset=)
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	stationID, ok := parseOptionalUUIDQuery(c, "station_id")
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

	bookings, err := h.lifecycle.ListBookings(c.Request.Context(), actor, stationID, statuses, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondList(c, bookings)
}

// MyBookings handles GET /api/v1/bookings/mine
func (h *BookingHandler) MyBookings(c *gin.Context) {
	actor, ok := actorFrom(c)
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

	bookings, err := h.lifecycle.MyBookings(c.Request.Context(), actor, statuses, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondList(c, bookings)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.lifecycle.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respond(c, http.StatusOK, booking)
}

// PayBooking handles POST /api/v1/bookings/:id/pay with body {"confirm": bool}
func (h *BookingHandler) PayBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.PayBookingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	result, err := h.lifecycle.InitiatePay(c.Request.Context(), actor, id, req.Confirm)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.lifecycle.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respond(c, http.StatusOK, booking)
}

// CompleteBooking handles POST /api/v1/bookings/:id/complete (station owner)
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.lifecycle.Complete(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respond(c, http.StatusOK, booking)
}

// GetPaymentAudit handles GET /api/v1/bookings/:id/audit
func (h *BookingHandler) GetPaymentAudit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	audits, err := h.lifecycle.PaymentHistory(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking_id": id,
		"events":     audits,
		"total":      len(audits),
	})
}
