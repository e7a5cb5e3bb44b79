package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"image-admission-service/internal/requestid"
)

// CORSMiddleware handles Cross-Origin Resource Sharing
type CORSMiddleware struct {
	allowedOrigins []string
}

// NewCORSMiddleware creates a new CORS middleware for the given origins
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	return &CORSMiddleware{
		allowedOrigins: allowedOrigins,
	}
}

// SetupCORS sets up CORS configuration
func (m *CORSMiddleware) SetupCORS() gin.HandlerFunc {
	allowAll := false
	for _, origin := range m.allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
	}

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: m.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", APIKeyHeader, requestid.Header},
		ExposedHeaders: []string{"Content-Length", requestid.Header},
		// browsers refuse credentials with a wildcard origin
		AllowCredentials: !allowAll,
		MaxAge:           86400,
	})

	return func(c *gin.Context) {
		corsMiddleware.HandlerFunc(c.Writer, c.Request)
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
