package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed-window counters between instances. Each window
// gets its own key so INCR alone is the atomic increment-and-compare.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "ratelimit",
		now:    time.Now,
	}
}

// Allow returns an error when redis cannot be reached. Callers must treat
// that as a rejection.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	start := windowStart(l.now(), rule.Window)
	resetAt := start.Add(rule.Window)
	redisKey := fmt.Sprintf("%s:%s:%s:%d", l.prefix, rule.Name, key, start.Unix())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, rule.Window+time.Second)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter %s: %w", rule.Name, err)
	}
	return decide(incr.Val(), rule, resetAt), nil
}
