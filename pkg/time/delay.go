package time

import (
	"math/rand"
	"time"
)

// GetRandomDelayGenerator returns a generator of random delays in [0, interval).
func GetRandomDelayGenerator(interval time.Duration) func() time.Duration {
	if interval <= 0 {
		interval = time.Second * 5
	}
	return func() time.Duration {
		return time.Duration(rand.Int63n(int64(interval)))
	}
}

// LinearBackoff computes delay of attempt n as min(maxDelay, n*minDelay) plus a random jitter lower than minDelay.
type LinearBackoff struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	jitter   func() time.Duration
}

func NewLinearBackoff(minDelay, maxDelay time.Duration) *LinearBackoff {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	b := &LinearBackoff{
		MinDelay: minDelay,
		MaxDelay: maxDelay,
		jitter:   func() time.Duration { return 0 },
	}
	if minDelay > 0 {
		b.jitter = GetRandomDelayGenerator(minDelay)
	}
	return b
}

// Delay returns the wait before the attempt following the n-th failed attempt, n starts at 1.
func (b *LinearBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * b.MinDelay
	if d > b.MaxDelay || d < 0 {
		d = b.MaxDelay
	}
	return d + b.jitter()
}
