package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"image-admission-service/internal/models"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func() (ready bool, detail string)

// HealthHandler handles health check requests
type HealthHandler struct {
	checks []ReadinessCheck
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Root answers the plain liveness banner
func (h *HealthHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Server is running!")
}

// APITest confirms the API routes are mounted
func (h *HealthHandler) APITest(c *gin.Context) {
	c.JSON(http.StatusOK, models.MessageResponse{Message: "API is working!"})
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready returns 503 until every readiness check passes
func (h *HealthHandler) Ready(c *gin.Context) {
	for _, check := range h.checks {
		if ready, detail := check(); !ready {
			c.JSON(http.StatusServiceUnavailable, models.ReadyResponse{
				Status: "unavailable",
				Reason: detail,
			})
			return
		}
	}

	c.JSON(http.StatusOK, models.ReadyResponse{
		Status: "ok",
	})
}
