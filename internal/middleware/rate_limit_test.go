package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryVisitorStoreSlidingWindow(t *testing.T) {
	store := NewMemoryVisitorStore(2, time.Minute, time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := store.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, _ := store.Allow(ctx, "10.0.0.1")
	assert.False(t, ok, "third request in the window is refused")

	ok, _ = store.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "other clients are unaffected")

	// the window has passed but the block has not
	now = now.Add(2 * time.Minute)
	ok, _ = store.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)

	now = now.Add(time.Hour)
	ok, _ = store.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
}

func TestMemoryVisitorStorePrune(t *testing.T) {
	store := NewMemoryVisitorStore(5, time.Minute, 0)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, _ = store.Allow(context.Background(), "10.0.0.1")
	store.prune()
	assert.Len(t, store.visitors, 1)

	now = now.Add(2 * time.Minute)
	store.prune()
	assert.Empty(t, store.visitors)
}

func TestRedisVisitorStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := NewRedisVisitorStore(ctx, RedisOptions{Addr: mr.Addr()}, 2, time.Minute, 10*time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Ping(ctx))

	for i := 0; i < 2; i++ {
		ok, err := store.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := store.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("ratelimit:block:10.0.0.1"))

	mr.FastForward(2 * time.Minute)
	ok, _ = store.Allow(ctx, "10.0.0.1")
	assert.False(t, ok, "still blocked after the window resets")

	mr.FastForward(10 * time.Minute)
	ok, err = store.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisVisitorStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewRedisVisitorStore(ctx, RedisOptions{Addr: addr}, 1, time.Minute, 0)
	assert.Error(t, err)

	_, err = NewRedisVisitorStore(ctx, RedisOptions{}, 1, time.Minute, 0)
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingStore) Close() error                                { return nil }

func TestRateLimitMiddleware(t *testing.T) {
	store := NewMemoryVisitorStore(1, time.Minute, time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	router := gin.New()
	router.Use(NewRateLimitMiddleware(zap.NewNop(), store).RateLimit())
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/api/test", nil)).Code)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded, please try again later"}`, w.Body.String())
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	router := gin.New()
	router.Use(NewRateLimitMiddleware(zap.NewNop(), failingStore{}).RateLimit())
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/api/test", nil)).Code)
}
