package domain

import (
	"context"
	"time"
)

// RateLimitDecision is the outcome of counting one request against a
// viewer's window.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a refused viewer should wait, rounded down to whole
// seconds. It is zero for allowed requests and open-ended windows.
func (d RateLimitDecision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.IsZero() || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now).Truncate(time.Second)
}

// RateLimiter counts requests per key within a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}

// RateLimitSubject is whom a request is counted against: the viewer's actor,
// or the client address for anonymous viewers.
func RateLimitSubject(v Viewer, clientAddr string) string {
	if v.ActorID != "" {
		return v.ActorID
	}
	return "ip:" + clientAddr
}

// RateLimitKey is the counter key for subject on route. Each route has its
// own window per viewer.
func RateLimitKey(subject, route string) string {
	return "viewer:" + subject + ":endpoint:" + route
}
