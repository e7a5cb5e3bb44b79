package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"image-admission-service/internal/services"
)

// StatsHandler handles statistics requests
type StatsHandler struct {
	pipeline *services.Pipeline
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(pipeline *services.Pipeline) *StatsHandler {
	return &StatsHandler{
		pipeline: pipeline,
	}
}

// GetStats returns service statistics
func (h *StatsHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.GetStats())
}
