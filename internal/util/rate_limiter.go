package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces calls evenly: each Wait reserves the next slot one
// interval after the previous one.
type RateLimiter struct {
	mu            sync.Mutex
	nextAllowedAt time.Time
	interval      time.Duration
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval < 0 {
		interval = 0
	}
	return &RateLimiter{interval: interval}
}

func PerSecond(requests int) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	return NewRateLimiter(time.Second / time.Duration(requests))
}

func PerMinute(requests int) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	return NewRateLimiter(time.Minute / time.Duration(requests))
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()
	scheduled := now
	if r.nextAllowedAt.After(now) {
		scheduled = r.nextAllowedAt
	}
	r.nextAllowedAt = scheduled.Add(r.interval)
	r.mu.Unlock()

	return Sleep(ctx, time.Until(scheduled))
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
