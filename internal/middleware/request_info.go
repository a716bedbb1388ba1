package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/chargeslot/booking-backend/internal/models"
	"github.com/chargeslot/booking-backend/internal/services"
	"github.com/chargeslot/booking-backend/internal/utils"
)

// RequestInfo attaches client IP and user agent to the request context for
// the payment audit trail
func RequestInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := services.WithRequestInfo(c.Request.Context(), models.RequestInfo{
			IPAddress: utils.GetRealIP(c),
			UserAgent: utils.GetUserAgent(c),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
