package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per caller key. Exports drive a real
// browser for minutes, so the budget is expressed per hour.
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	perHour  int
	rate     rate.Limit
	burst    int
}

// NewLimiter returns a limiter allowing perHour exports per caller with the
// given burst. perHour <= 0 disables limiting.
func NewLimiter(perHour int, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		perHour:  perHour,
		rate:     rate.Limit(float64(perHour) / 3600.0),
		burst:    burst,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.perHour > 0
}

func (l *Limiter) PerHour() int {
	return l.perHour
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.limiters[key]
	if !ok {
		b = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = b
	}
	return b
}

// Allow consumes a token for key if one is available
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	return l.bucket(key).Allow()
}

// Remaining reports whole tokens left for key
func (l *Limiter) Remaining(key string) int {
	if !l.Enabled() {
		return 0
	}
	return int(l.bucket(key).Tokens())
}

// RetryAfter estimates how long key has to wait for the next token
func (l *Limiter) RetryAfter(key string) time.Duration {
	if !l.Enabled() {
		return 0
	}
	r := l.bucket(key).Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}
