package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})

	return client
}

func TestRedisLimiter_SixthRequestRejected(t *testing.T) {
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client)
	rule := Rule{Name: "auth", Max: 5, Window: time.Minute}

	for i := 0; i < 5; i++ {
		d, err := limiter.Allow(context.Background(), "test-client", rule)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
	}

	d, err := limiter.Allow(context.Background(), "test-client", rule)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "6th request should be denied")
}

func TestRedisLimiter_WindowRollover(t *testing.T) {
	client := setupTestRedis(t)
	limiter := NewRedisLimiter(client)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	rule := Rule{Name: "upload", Max: 1, Window: time.Minute}

	d, err := limiter.Allow(context.Background(), "c", rule)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, err = limiter.Allow(context.Background(), "c", rule)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	now = now.Add(time.Minute)
	d, err = limiter.Allow(context.Background(), "c", rule)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_FailsWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	d, err := NewRedisLimiter(client).Allow(context.Background(), "c", Rule{Name: "global", Max: 5, Window: time.Minute})
	assert.Error(t, err)
	assert.False(t, d.Allowed)
}
