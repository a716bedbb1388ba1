package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/chargeslot/booking-backend/internal/middleware"
	"github.com/chargeslot/booking-backend/internal/models"
)

// Handlers groups the HTTP handlers of the booking API
type Handlers struct {
	Bookings *BookingHandler
	Payments *PaymentHandler
	Owner    *OwnerHandler
	Health   *HealthHandler
}

// RegisterRoutes mounts the API on router. auth validates the caller; limit
// throttles mutating routes and may be nil.
func RegisterRoutes(router *gin.Engine, h Handlers, auth gin.HandlerFunc, limit gin.HandlerFunc) {
	router.GET("/health", h.Health.Health)

	mutating := []gin.HandlerFunc{}
	if limit != nil {
		mutating = append(mutating, limit)
	}
	with := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, mutating...), handler)
	}

	v1 := router.Group("/api/v1", auth, middleware.RequestInfo())
	{
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", with(h.Bookings.CreateBooking)...)
			bookings.GET("", h.Bookings.ListBookings)
			bookings.GET("/mine", h.Bookings.MyBookings)
			bookings.GET("/:id", h.Bookings.GetBooking)
			bookings.GET("/:id/audit", h.Bookings.GetPaymentAudit)
			bookings.POST("/:id/pay", with(h.Bookings.PayBooking)...)
			bookings.POST("/:id/cancel", with(h.Bookings.CancelBooking)...)
			bookings.POST("/:id/complete", with(h.Bookings.CompleteBooking)...)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("", with(h.Payments.InitiatePayment)...)
			payments.GET("", h.Payments.ListPayments)
			payments.GET("/:id", h.Payments.GetPayment)
			payments.POST("/:id/confirm", with(h.Payments.ConfirmPayment)...)
		}

		owner := v1.Group("/owner", middleware.RequireRole(models.RoleChargerOwner, models.RoleAdmin))
		{
			owner.GET("/stations/summary", h.Owner.GetStationSummary)
			owner.GET("/stations/:station_id/bookings", h.Owner.GetStationBookings)
		}
	}
}
