package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket caps the request rate of one host. It starts full, so the
// first burst calls go through without waiting.
type TokenBucket struct {
	perSec float64
	burst  float64

	mu     sync.Mutex
	avail  float64
	filled time.Time
}

// NewTokenBucket refills perSec tokens a second up to burst. A non-positive
// rate never refills once the initial burst is spent.
func NewTokenBucket(perSec float64, burst int) *TokenBucket {
	if perSec <= 0 {
		perSec = 1e-7
	}
	burst = max(burst, 1)
	return &TokenBucket{perSec: perSec, burst: float64(burst), avail: float64(burst), filled: time.Now()}
}

// PerMinute is NewTokenBucket expressed in requests per minute.
func PerMinute(n, burst int) *TokenBucket {
	return NewTokenBucket(float64(n)/60, burst)
}

// Wait takes one token, sleeping until it is available or ctx ends.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		d := b.take(time.Now())
		if d == 0 {
			return nil
		}
		if err := Sleep(ctx, d); err != nil {
			return err
		}
	}
}

// take refills for the time elapsed and returns zero when a token was
// taken, else how long until one is due.
func (b *TokenBucket) take(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dt := now.Sub(b.filled).Seconds(); dt > 0 {
		b.avail = min(b.burst, b.avail+dt*b.perSec)
		b.filled = now
	}
	if b.avail >= 1 {
		b.avail--
		return 0
	}
	return max(time.Duration((1-b.avail)/b.perSec*float64(time.Second)), time.Millisecond)
}
