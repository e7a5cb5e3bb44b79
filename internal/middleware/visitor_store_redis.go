package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the shared visitor store
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisVisitorStore is a fixed window limiter shared by every replica
type RedisVisitorStore struct {
	client      *redis.Client
	prefix      string
	limit       int64
	window      time.Duration
	blockWindow time.Duration
}

// NewRedisVisitorStore connects to Redis and verifies the connection
func NewRedisVisitorStore(ctx context.Context, opts RedisOptions, limit int, window, blockWindow time.Duration) (*RedisVisitorStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ratelimit:"
	}

	return &RedisVisitorStore{
		client:      client,
		prefix:      prefix,
		limit:       int64(limit),
		window:      window,
		blockWindow: blockWindow,
	}, nil
}

func (s *RedisVisitorStore) countKey(ip string) string { return s.prefix + "count:" + ip }
func (s *RedisVisitorStore) blockKey(ip string) string { return s.prefix + "block:" + ip }

// Allow implements VisitorStore
func (s *RedisVisitorStore) Allow(ctx context.Context, key string) (bool, error) {
	err := s.client.Get(ctx, s.blockKey(key)).Err()
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, redis.Nil):
		return false, err
	}

	count, err := s.client.Incr(ctx, s.countKey(key)).Result()
	if err != nil {
		return false, err
	}
	// the first request of a window starts its clock
	if count == 1 {
		if err := s.client.Expire(ctx, s.countKey(key), s.window).Err(); err != nil {
			return false, err
		}
	}

	if count > s.limit {
		if s.blockWindow > 0 {
			if err := s.client.Set(ctx, s.blockKey(key), 1, s.blockWindow).Err(); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	return true, nil
}

// Ping reports whether Redis is reachable
func (s *RedisVisitorStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool
func (s *RedisVisitorStore) Close() error {
	return s.client.Close()
}
