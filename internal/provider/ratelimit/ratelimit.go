package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Jitter is the courtesy pacer: every Pace call blocks for a random
// duration drawn uniformly from [Min, Max], or returns early if the
// context is canceled.
type Jitter struct {
	Min time.Duration
	Max time.Duration

	// Sleep and Rand are replaceable in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

func NewJitter(lo, hi time.Duration) *Jitter {
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}
	return &Jitter{Min: lo, Max: hi}
}

// Next draws the next delay without sleeping.
func (j *Jitter) Next() time.Duration {
	if j.Max <= j.Min {
		return j.Min
	}
	r := rand.Float64
	if j.Rand != nil {
		r = j.Rand
	}
	return j.Min + time.Duration(r()*float64(j.Max-j.Min))
}

func (j *Jitter) Pace(ctx context.Context) error {
	d := j.Next()
	if j.Sleep != nil {
		return j.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HostGate enforces a jittered minimum interval between two calls to the
// same host, shared by every caller of the session. With PerMinute > 0 it
// also caps each host with a token bucket.
type HostGate struct {
	Interval  *Jitter
	PerMinute int
	Burst     int

	mu      sync.Mutex
	next    map[string]time.Time
	buckets map[string]*TokenBucket
}

func NewHostGate(interval *Jitter, perMinute, burst int) *HostGate {
	return &HostGate{Interval: interval, PerMinute: perMinute, Burst: burst}
}

// Wait reserves the next slot for host and blocks until it opens.
func (g *HostGate) Wait(ctx context.Context, host string) error {
	g.mu.Lock()
	if g.next == nil {
		g.next = make(map[string]time.Time)
	}
	now := time.Now()
	slot := g.next[host]
	if slot.Before(now) {
		slot = now
	}
	var gap time.Duration
	if g.Interval != nil {
		gap = g.Interval.Next()
	}
	// the slot is reserved before sleeping so concurrent callers queue up
	g.next[host] = slot.Add(gap)
	tb := g.bucket(host)
	g.mu.Unlock()

	if err := Sleep(ctx, time.Until(slot)); err != nil {
		return err
	}
	if tb != nil {
		return tb.Wait(ctx)
	}
	return nil
}

// bucket must be called with mu held.
func (g *HostGate) bucket(host string) *TokenBucket {
	if g.PerMinute <= 0 {
		return nil
	}
	if g.buckets == nil {
		g.buckets = make(map[string]*TokenBucket)
	}
	tb, ok := g.buckets[host]
	if !ok {
		tb = PerMinute(g.PerMinute, g.Burst)
		g.buckets[host] = tb
	}
	return tb
}
