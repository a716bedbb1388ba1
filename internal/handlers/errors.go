package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/middleware"
	"github.com/chargeslot/booking-backend/internal/models"
	"github.com/chargeslot/booking-backend/internal/services"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error         string               `json:"error"`
	Message       string               `json:"message"`
	BookingStatus models.BookingStatus `json:"booking_status,omitempty"`
	PaymentStatus models.PaymentStatus `json:"payment_status,omitempty"`
}

// respondError writes err as an ErrorResponse. Lifecycle errors keep their
// code and observed statuses; anything else is reported as an internal error.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var lerr *services.LifecycleError
	if !errors.As(err, &lerr) {
		lerr = &services.LifecycleError{Code: services.CodeInternal, Message: "internal error", Err: err}
	}

	status := lerr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	_ = c.Error(err)

	message := lerr.Message
	if lerr.Code == services.CodeInternal {
		// Store errors are not for clients
		message = "internal error"
	}
	c.JSON(status, ErrorResponse{
		Error:         string(lerr.Code),
		Message:       message,
		BookingStatus: lerr.BookingStatus,
		PaymentStatus: lerr.PaymentStatus,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   string(services.CodeValidation),
		Message: message,
	})
}

// actorFrom returns the authenticated actor, writing 401 when there is none
func actorFrom(c *gin.Context) (models.Actor, bool) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User context not found",
		})
		return models.Actor{}, false
	}
	return userCtx.Actor(), true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUUIDQuery parses an optional UUID query parameter
func parseOptionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &id, true
}

// parseStatuses accepts ?status=PENDING,EXPIRED as well as repeated status params
func parseStatuses(c *gin.Context) ([]models.BookingStatus, bool) {
	var out []models.BookingStatus
	for _, value := range c.QueryArray("status") {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, err := models.ParseBookingStatus(strings.ToUpper(part))
			if err != nil {
				badRequest(c, err.Error())
				return nil, false
			}
			out = append(out, status)
		}
	}
	return out, true
}

// parsePagination reads limit and offset; the store applies defaults and caps
func parsePagination(c *gin.Context) (limit, offset int, ok bool) {
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			badRequest(c, "invalid limit")
			return 0, 0, false
		}
		limit = v
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			badRequest(c, "invalid offset")
			return 0, 0, false
		}
		offset = v
	}
	return limit, offset, true
}
