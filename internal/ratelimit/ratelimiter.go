// Package ratelimit implements fixed-window request counters shared by all
// handlers of one process (memory) or of many processes (redis).
package ratelimit

import (
	"context"
	"time"
)

// Rule is one fixed-window budget: at most Max requests per Window.
type Rule struct {
	Name   string
	Max    int
	Window time.Duration
}

// Decision is the outcome of counting one request.
type Decision struct {
	Allowed   bool
	Count     int64
	Remaining int64
	ResetAt   time.Time
}

// Limiter counts a request against key and reports whether it fits the
// rule. Increment and compare happen atomically.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}

func decide(count int64, rule Rule, resetAt time.Time) Decision {
	remaining := int64(rule.Max) - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(rule.Max),
		Count:     count,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// windowStart truncates now to the beginning of its fixed window.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}
