package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"image-admission-service/internal/models"
	"image-admission-service/internal/services"
)

// PolicyHandler exposes the active admission configuration
type PolicyHandler struct {
	pipeline *services.Pipeline
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(pipeline *services.Pipeline) *PolicyHandler {
	return &PolicyHandler{
		pipeline: pipeline,
	}
}

// GetPolicy returns the policy table, expected coordinate and threshold
func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	rules := h.pipeline.Policy().Rules()
	resp := models.PolicyResponse{
		Rules:               make([]models.PolicyRuleResponse, 0, len(rules)),
		ExpectedLocation:    h.pipeline.ExpectedLocation(),
		LocationThresholdKm: h.pipeline.LocationThresholdKm(),
	}
	for _, rule := range rules {
		resp.Rules = append(resp.Rules, models.PolicyRuleResponse{
			Category: rule.Category,
			RejectAt: rule.RejectAt.String(),
		})
	}

	c.JSON(http.StatusOK, resp)
}
