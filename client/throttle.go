package client

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// SlidingWindowThrottle admits at most limit submissions in any trailing window.
type SlidingWindowThrottle struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	timestamps []time.Time
}

// NewSlidingWindowThrottle creates a sliding window throttle.
// Non-positive values default to 100 submissions per 10 seconds.
func NewSlidingWindowThrottle(limit int, window time.Duration) *SlidingWindowThrottle {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &SlidingWindowThrottle{
		limit:      limit,
		window:     window,
		timestamps: make([]time.Time, 0, limit),
	}
}

// prune drops timestamps that left the window. Caller holds mu.
func (t *SlidingWindowThrottle) prune(now time.Time) {
	windowStart := now.Add(-t.window)
	kept := t.timestamps[:0]
	for _, ts := range t.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	t.timestamps = kept
}

// Acquire waits until a slot is free or ctx is done.
func (t *SlidingWindowThrottle) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		t.mu.Lock()
		now := time.Now()
		t.prune(now)
		if len(t.timestamps) < t.limit {
			t.timestamps = append(t.timestamps, now)
			t.mu.Unlock()
			return nil
		}
		wait := t.timestamps[0].Add(t.window).Sub(now)
		t.mu.Unlock()

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// InWindow returns the number of submissions in the current window.
func (t *SlidingWindowThrottle) InWindow() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(time.Now())
	return len(t.timestamps)
}

// Remaining returns how many submissions the current window still admits.
func (t *SlidingWindowThrottle) Remaining() int {
	return max(0, t.limit-t.InWindow())
}

// Reset clears the window.
func (t *SlidingWindowThrottle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timestamps = t.timestamps[:0]
}

// Defaults for NewTokenBucket when given non-positive values.
const (
	defaultTokenRate  = 10.0
	defaultTokenBurst = 1
)

// TokenBucket paces submissions at a steady rate with bursts up to its capacity.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a full bucket refilling at r tokens per second.
// A non-positive r defaults to 10 per second and a non-positive burst to 1.
func NewTokenBucket(r float64, burst int) *TokenBucket {
	if r <= 0 {
		r = defaultTokenRate
	}
	if burst <= 0 {
		burst = defaultTokenBurst
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(r), burst)}
}

// Acquire takes a token, waiting for one to refill if needed. A cancelled
// wait hands its reserved token back.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res := b.limiter.Reserve()
	if !res.OK() {
		return errors.Newf("token bucket: burst %d admits no submission", b.limiter.Burst())
	}
	delay := res.Delay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Available returns the whole tokens currently in the bucket.
func (b *TokenBucket) Available() int {
	return max(0, int(b.limiter.Tokens()))
}
