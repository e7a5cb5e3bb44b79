package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"image-admission-service/internal/requestid"
)

// maxRequestIDLength bounds client supplied IDs before they reach the logs
const maxRequestIDLength = 128

// RequestID tags each request with an ID, reusing one set by an upstream
// proxy, and echoes it in the response header
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestid.Header)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.New().String()
		}

		c.Header(requestid.Header, id)
		c.Request = c.Request.WithContext(requestid.NewContext(c.Request.Context(), id))
		c.Next()
	}
}
