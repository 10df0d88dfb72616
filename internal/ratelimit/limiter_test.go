package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterBurst(t *testing.T) {
	l := NewLimiter(12, 2)

	assert.True(t, l.Allow("key-a"))
	assert.True(t, l.Allow("key-a"))
	assert.False(t, l.Allow("key-a"))

	// buckets are independent per key
	assert.True(t, l.Allow("key-b"))
	assert.Equal(t, 1, l.Remaining("key-b"))
}

func TestLimiterRetryAfter(t *testing.T) {
	l := NewLimiter(12, 1)
	assert.True(t, l.Allow("k"))

	d := l.RetryAfter("k")
	assert.Greater(t, d, 4*time.Minute)
	assert.LessOrEqual(t, d, 5*time.Minute)

	// RetryAfter must not consume the token it measured
	assert.InDelta(t, d.Seconds(), l.RetryAfter("k").Seconds(), 1)
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(0, 0)
	assert.False(t, l.Enabled())
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k"))
	}

	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("k"))
}
