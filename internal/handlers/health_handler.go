package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chargeslot/booking-backend/internal/database"
)

// HealthHandler reports service and dependency health
type HealthHandler struct {
	db      database.Pinger // nil with the in-memory store
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db database.Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	dbStatus := "memory"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}
		dbStatus = "healthy"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  dbStatus,
		"version":   h.version,
		"timestamp": time.Now().Unix(),
	})
}
