package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"image-admission-service/internal/requestid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	router := gin.New()
	router.GET("/stats", NewAuthMiddleware("s3cret").AuthRequired(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"valid key", "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			assert.Equal(t, tt.status, serve(router, req).Code)
		})
	}
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	router := gin.New()
	router.GET("/stats", NewAuthMiddleware("").AuthRequired(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		seen = requestid.FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(requestid.Header)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.Header, "upstream-id")
	w = serve(router, req)
	assert.Equal(t, "upstream-id", w.Header().Get(requestid.Header))
	assert.Equal(t, "upstream-id", seen)
}

func TestRecoveryWithZap(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(RequestID(), NewRecoveryMiddleware(zap.New(core)).RecoveryWithZap())
	router.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())

	entries := logs.FilterMessage("Panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, w.Header().Get(requestid.Header), entries[0].ContextMap()["request_id"])
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(RequestID(), NewLoggerMiddleware(zap.New(core)).RequestLogger())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/test", nil))

	entries := logs.FilterMessage("Request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/test", fields["path"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status_code"])
	assert.Equal(t, w.Header().Get(requestid.Header), fields["request_id"])
}

func TestSetupCORS(t *testing.T) {
	router := gin.New()
	router.Use(NewCORSMiddleware([]string{"https://pins.example"}).SetupCORS())
	router.POST("/api/check-image", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := httptest.NewRequest(http.MethodOptions, "/api/check-image", nil)
	preflight.Header.Set("Origin", "https://pins.example")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(router, preflight)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://pins.example", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodPost, "/api/check-image", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/api/test", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, httptest.NewRequest(http.MethodGet, "/nope", nil)).Code)
}
