package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/models"
	"github.com/chargeslot/booking-backend/internal/services"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	lifecycle *services.BookingLifecycleService
	logger    *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(lifecycle *services.BookingLifecycleService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{lifecycle: lifecycle, logger: logger}
}

// InitiatePayment handles POST /api/v1/payments with body {"booking_id": "..."}
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		badRequest(c, "invalid booking_id")
		return
	}

	result, err := h.lifecycle.InitiatePay(c.Request.Context(), actor, bookingID, false)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ConfirmPayment handles POST /api/v1/payments/:id/confirm.
// Repeating the call for a paid payment returns the same result.
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.lifecycle.ConfirmPay(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListPayments handles GET /api/v1/payments (?booking_id=, ?limit=, ?offset=)
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	bookingID, ok := parseOptionalUUIDQuery(c, "booking_id")
	if !ok {
		return
	}
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	payments, err := h.lifecycle.ListPayments(c.Request.Context(), actor, bookingID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"total":    len(payments),
	})
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.lifecycle.GetPayment(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
