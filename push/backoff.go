package push

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff produces bounded, jittered reconnect delays (decorrelated
// jitter). Bounded and jittered is required to avoid thundering-herd
// reconnects when many clients lose the same server.
type Backoff struct {
	mu      sync.Mutex
	base    time.Duration
	cap     time.Duration
	current time.Duration
}

func NewBackoff(base, cap time.Duration) *Backoff {
	return &Backoff{base: base, cap: cap, current: base}
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	upper := b.current * 3
	if upper > b.cap {
		upper = b.cap
	}
	span := upper - b.base
	next := b.base
	if span > 0 {
		next += time.Duration(rand.Int64N(int64(span)))
	}
	b.current = next
	return next
}

// Reset restores the base delay after a successful handshake.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.base
}
