package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"lineage/internal/domain"
)

var ErrCapacityExceeded = errors.New("rate limiter capacity exceeded")

// MemoryLimiter is a fixed-window counter per key held in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

type window struct {
	count int
	end   time.Time
}

type MemoryConfig struct {
	Now     func() time.Time
	MaxKeys int
}

func NewMemoryLimiter(cfg MemoryConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &MemoryLimiter{
		now:     cfg.Now,
		windows: make(map[string]*window),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, d time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if ok && now.After(w.end) {
		delete(m.windows, key)
		ok = false
	}
	if !ok {
		if len(m.windows) >= m.maxKeys {
			m.sweep(now)
		}
		if len(m.windows) >= m.maxKeys {
			return domain.RateLimitDecision{}, ErrCapacityExceeded
		}
		w = &window{end: now.Add(d)}
		m.windows[key] = w
	}

	decision := domain.RateLimitDecision{Limit: limit, ResetAt: w.end}
	if w.count < limit {
		w.count++
		decision.Allowed = true
		decision.Remaining = limit - w.count
	}
	return decision, nil
}

func (m *MemoryLimiter) sweep(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.end) {
			delete(m.windows, key)
		}
	}
}

var _ domain.RateLimiter = (*MemoryLimiter)(nil)
