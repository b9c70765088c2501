// Package ratelimit enforces per-caller request limits on the public surface.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter per key (caller uid). All keys share
// the same rate and burst, configured at construction.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	now      func() time.Time // injectable clock for testing
}

// New creates a Limiter that allows requests per window with a burst of the
// same size.
func New(requests int, window time.Duration) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		burst:    requests,
		now:      time.Now,
	}
}

// limiter returns the bucket for key, creating one if it doesn't exist.
func (l *Limiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow reports whether a request identified by key is permitted, consuming
// one token when it is.
func (l *Limiter) Allow(key string) bool {
	return l.limiter(key).AllowN(l.now(), 1)
}

// Status returns the current rate-limit state for key. limit is the bucket
// size, remaining the number of tokens left (floored to int), and resetAt the
// time at which the bucket will be fully replenished.
func (l *Limiter) Status(key string) (limit int, remaining int, resetAt time.Time) {
	lim := l.limiter(key)
	now := l.now()

	tokens := lim.TokensAt(now)
	limit = l.burst
	remaining = int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	deficit := float64(l.burst) - tokens
	if deficit <= 0 {
		resetAt = now
	} else {
		resetAt = now.Add(time.Duration(deficit / float64(l.limit) * float64(time.Second)))
	}
	return
}
