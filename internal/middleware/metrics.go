package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"image-admission-service/internal/metrics"
)

// Metrics records request counts and latency per route
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			// unmatched routes share one label to bound cardinality
			path = "unmatched"
		}
		metrics.RecordAPIRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
