package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultLimitPerSec = 1

var _ RateLimiter = (*LocalRateLimiter)(nil)

// LocalRateLimiter keeps one token bucket per sender in process memory.
type LocalRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func NewLocalRateLimiter(limitPerSec int) *LocalRateLimiter {
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}

	return &LocalRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(limitPerSec),
		burst:    limitPerSec,
		now:      time.Now,
	}
}

// Allow takes a token when one is available. Otherwise the reservation is
// handed back and its delay is reported as RetryAfter.
func (l *LocalRateLimiter) Allow(_ context.Context, sender string) (Decision, error) {
	limiter, err := l.limiterFor(sender)
	if err != nil {
		return Decision{}, err
	}

	now := l.now()
	reservation := limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return Decision{Allowed: true}, nil
	}

	reservation.CancelAt(now)
	return Decision{RetryAfter: delay}, nil
}

func (l *LocalRateLimiter) limiterFor(sender string) (*rate.Limiter, error) {
	key, err := NormalizeKey(sender)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	return limiter, nil
}
