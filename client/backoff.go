package client

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RetryPolicy controls the retry behaviour for transient failures.  Connection errors
// and responses with status 408, 429 or 5xx are transient.  Context cancellation is not.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
}

// DefaultRetryPolicy retries a few times within a couple of seconds.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
}

// NoRetry disables retries.
var NoRetry = RetryPolicy{}

// backoff implements exponential backoff with optional jitter.
type backoff struct {
	base   time.Duration
	max    time.Duration
	jitter float64

	mu   sync.Mutex
	rand *rand.Rand
}

func newBackoff(policy RetryPolicy) *backoff {
	b := &backoff{
		base:   policy.BaseDelay,
		max:    policy.MaxDelay,
		jitter: policy.Jitter,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if b.base <= 0 {
		b.base = 50 * time.Millisecond
	}
	if b.max < b.base {
		b.max = b.base
	}
	if b.jitter < 0 {
		b.jitter = 0
	}
	return b
}

// forAttempt returns the delay before the given retry (0-indexed).
func (b *backoff) forAttempt(attempt int) time.Duration {
	delay := b.base
	if attempt > 0 {
		delay = time.Duration(float64(b.base) * math.Pow(2, float64(attempt)))
		if delay <= 0 || delay > b.max {
			delay = b.max
		}
	}
	if b.jitter == 0 {
		return delay
	}
	b.mu.Lock()
	factor := 1 + (b.rand.Float64()*2-1)*math.Min(b.jitter, 1)
	b.mu.Unlock()
	return time.Duration(float64(delay) * factor)
}
