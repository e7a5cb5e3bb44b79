package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"image-admission-service/internal/models"
)

// APIKeyHeader carries the operator API key
const APIKeyHeader = "X-API-KEY"

// AuthMiddleware handles API key authentication for operator endpoints
type AuthMiddleware struct {
	apiKey string
}

// NewAuthMiddleware creates a new auth middleware. An empty key disables the check.
func NewAuthMiddleware(apiKey string) *AuthMiddleware {
	return &AuthMiddleware{
		apiKey: apiKey,
	}
}

// AuthRequired validates the API key in the request header
func (m *AuthMiddleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.apiKey == "" {
			c.Next()
			return
		}

		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "API key is required"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(m.apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid API key"})
			return
		}

		c.Next()
	}
}
