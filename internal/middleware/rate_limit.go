package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"image-admission-service/internal/metrics"
	"image-admission-service/internal/models"
)

// VisitorStore tracks request counts per client
type VisitorStore interface {
	// Allow records one request for key and reports whether it is within
	// the limit. A key over the limit stays blocked for the block window.
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	logger *zap.Logger
	store  VisitorStore
}

// NewRateLimitMiddleware creates a new rate limit middleware over store
func NewRateLimitMiddleware(logger *zap.Logger, store VisitorStore) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		logger: logger,
		store:  store,
	}
}

// RateLimit limits requests based on IP address. Store errors let the request through.
func (r *RateLimitMiddleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		ctx, cancel := context.WithTimeout(c.Request.Context(), 250*time.Millisecond)
		allowed, err := r.store.Allow(ctx, ip)
		cancel()
		if err != nil {
			r.logger.Warn("Rate limit store unavailable, allowing request", zap.String("ip", ip), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			metrics.RateLimitedRequests.Inc()
			r.logger.Warn("Rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: "Rate limit exceeded, please try again later",
			})
			return
		}

		c.Next()
	}
}
