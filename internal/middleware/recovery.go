package middleware

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"image-admission-service/internal/models"
	"image-admission-service/internal/requestid"
)

// RecoveryMiddleware handles panic recovery
type RecoveryMiddleware struct {
	logger *zap.Logger
}

// NewRecoveryMiddleware creates a new recovery middleware
func NewRecoveryMiddleware(logger *zap.Logger) *RecoveryMiddleware {
	return &RecoveryMiddleware{
		logger: logger,
	}
}

// RecoveryWithZap recovers from panics, logs them and answers 500
func (m *RecoveryMiddleware) RecoveryWithZap() gin.HandlerFunc {
	return gin.RecoveryWithWriter(io.Discard, func(c *gin.Context, err interface{}) {
		m.logger.Error("Panic recovered",
			zap.String("request_id", requestid.FromContext(c.Request.Context())),
			zap.String("path", c.Request.URL.Path),
			zap.Any("error", err),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Internal server error",
		})
	})
}
