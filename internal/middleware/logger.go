package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"image-admission-service/internal/requestid"
)

// LoggerMiddleware handles request logging
type LoggerMiddleware struct {
	logger *zap.Logger
}

// NewLoggerMiddleware creates a new logger middleware
func NewLoggerMiddleware(logger *zap.Logger) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger: logger,
	}
}

// RequestLogger logs each served request through zap. Probe endpoints are skipped.
func (m *LoggerMiddleware) RequestLogger() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health", "/ready", "/metrics"},
		Formatter: func(param gin.LogFormatterParams) string {
			fields := []zap.Field{
				zap.String("request_id", requestid.FromContext(param.Request.Context())),
				zap.String("client_ip", param.ClientIP),
				zap.String("method", param.Method),
				zap.String("path", param.Path),
				zap.Int("status_code", param.StatusCode),
				zap.Int64("latency_us", param.Latency.Microseconds()),
				zap.Int("body_size", param.BodySize),
				zap.String("user_agent", param.Request.UserAgent()),
			}
			if param.ErrorMessage != "" {
				fields = append(fields, zap.String("error", param.ErrorMessage))
			}
			m.logger.Info("Request", fields...)
			return ""
		},
	})
}
