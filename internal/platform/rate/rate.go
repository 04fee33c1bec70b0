// Package rate implements a token bucket limiter for outbound API calls.
package rate

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket. Besides the steady rate it can be paused until a
// point in time, which is how a server-announced quota reset is honoured.
type Limiter struct {
	mu          sync.Mutex
	perSecond   float64
	burst       int
	tokens      float64
	last        time.Time
	pausedUntil time.Time
	now         func() time.Time
}

// New returns a full bucket refilling perSecond tokens per second, holding at
// most burst tokens. Non-positive values fall back to 1.
func New(perSecond float64, burst int) *Limiter {
	return newWithClock(perSecond, burst, time.Now)
}

func newWithClock(perSecond float64, burst int, now func() time.Time) *Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		perSecond: perSecond,
		burst:     burst,
		tokens:    float64(burst),
		last:      now(),
		now:       now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		delay := l.reserve()
		if delay <= 0 {
			return nil
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Allow takes a token if one is available right now.
func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN takes n tokens if they are all available right now.
func (l *Limiter) AllowN(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.pausedUntil) {
		return false
	}
	l.refill(now)
	if l.tokens < float64(n) {
		return false
	}
	l.tokens -= float64(n)
	return true
}

// PauseUntil refuses every token until t. The bucket is empty once the pause
// ends, so callers resume at the steady rate.
func (l *Limiter) PauseUntil(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.After(l.pausedUntil) {
		l.pausedUntil = t
		l.tokens = 0
		l.last = t
	}
}

// SetRate changes the refill rate. Tokens accrued so far are kept.
func (l *Limiter) SetRate(perSecond float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if perSecond <= 0 {
		perSecond = 1
	}
	l.refill(l.now())
	l.perSecond = perSecond
}

// SetBurst changes the bucket size, dropping tokens above it.
func (l *Limiter) SetBurst(burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if burst <= 0 {
		burst = 1
	}
	l.refill(l.now())
	l.burst = burst
	if l.tokens > float64(burst) {
		l.tokens = float64(burst)
	}
}

func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.now())
	return l.tokens
}

func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perSecond
}

func (l *Limiter) Burst() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burst
}

// Reset refills the bucket and clears any pause.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = float64(l.burst)
	l.last = l.now()
	l.pausedUntil = time.Time{}
}

// reserve takes a token and returns 0, or returns how long to wait before
// trying again.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.pausedUntil) {
		return l.pausedUntil.Sub(now)
	}
	l.refill(now)
	if l.tokens >= 1 {
		l.tokens--
		return 0
	}
	missing := 1 - l.tokens
	return time.Duration(missing / l.perSecond * float64(time.Second))
}

// refill must be called with l.mu held.
func (l *Limiter) refill(now time.Time) {
	if now.Before(l.last) {
		return
	}
	l.tokens += now.Sub(l.last).Seconds() * l.perSecond
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.last = now
}
