package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter keeps counters in process memory behind a mutex.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
	calls    int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

const sweepEvery = 1024

func (l *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (Decision, error) {
	now := l.now()
	k := rule.Name + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}

	c, ok := l.counters[k]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{resetAt: windowStart(now, rule.Window).Add(rule.Window)}
		l.counters[k] = c
	}
	c.count++
	return decide(c.count, rule, c.resetAt), nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for k, c := range l.counters {
		if !now.Before(c.resetAt) {
			delete(l.counters, k)
		}
	}
}
