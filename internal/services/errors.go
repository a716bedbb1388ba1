package services

import (
	"fmt"
	"net/http"

	"github.com/chargeslot/booking-backend/internal/models"
)

// ErrorCode is the machine readable kind of a lifecycle failure
type ErrorCode string

const (
	CodeConflict         ErrorCode = "STATION_OCCUPIED"
	CodeInvalidState     ErrorCode = "INVALID_STATE"
	CodeBookingExpired   ErrorCode = "BOOKING_EXPIRED"
	CodeAlreadyConfirmed ErrorCode = "ALREADY_CONFIRMED"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeGateway          ErrorCode = "GATEWAY_ERROR"
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// LifecycleError is returned by every BookingLifecycleService operation.
// BookingStatus and PaymentStatus describe the state observed when the
// operation failed so a client can decide whether to re-fetch and retry.
type LifecycleError struct {
	Code          ErrorCode
	Message       string
	BookingStatus models.BookingStatus
	PaymentStatus models.PaymentStatus
	Err           error
}

// Sentinels for errors.Is matching; only Code is compared.
var (
	ErrConflict         = &LifecycleError{Code: CodeConflict}
	ErrInvalidState     = &LifecycleError{Code: CodeInvalidState}
	ErrBookingExpired   = &LifecycleError{Code: CodeBookingExpired}
	ErrAlreadyConfirmed = &LifecycleError{Code: CodeAlreadyConfirmed}
	ErrForbidden        = &LifecycleError{Code: CodeForbidden}
	ErrNotFound         = &LifecycleError{Code: CodeNotFound}
	ErrGateway          = &LifecycleError{Code: CodeGateway}
	ErrValidation       = &LifecycleError{Code: CodeValidation}
	ErrInternal         = &LifecycleError{Code: CodeInternal}
)

func (e *LifecycleError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// Is matches any LifecycleError carrying the same code
func (e *LifecycleError) Is(target error) bool {
	t, ok := target.(*LifecycleError)
	return ok && t.Code == e.Code
}

// Retryable reports whether the caller may retry the same request unchanged
func (e *LifecycleError) Retryable() bool {
	return e.Code == CodeGateway
}

// HTTPStatus maps the error code to the HTTP status used by the API
func (e *LifecycleError) HTTPStatus() int {
	switch e.Code {
	case CodeConflict, CodeInvalidState, CodeAlreadyConfirmed:
		return http.StatusConflict
	case CodeBookingExpired:
		return http.StatusGone
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeGateway:
		return http.StatusBadGateway
	case CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newLifecycleError(code ErrorCode, message string) *LifecycleError {
	return &LifecycleError{Code: code, Message: message}
}

func (e *LifecycleError) withBooking(b *models.Booking) *LifecycleError {
	if b != nil {
		e.BookingStatus = b.Status
	}
	return e
}

func (e *LifecycleError) withPayment(p *models.Payment) *LifecycleError {
	if p != nil {
		e.PaymentStatus = p.Status
	}
	return e
}

func (e *LifecycleError) wrap(err error) *LifecycleError {
	e.Err = err
	return e
}

func internalError(message string, err error) *LifecycleError {
	return newLifecycleError(CodeInternal, message).wrap(err)
}
