package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitter_StaysInWindow(t *testing.T) {
	t.Parallel()

	j := NewJitter(600*time.Millisecond, 1800*time.Millisecond)
	for i := 0; i < 200; i++ {
		d := j.Next()
		require.GreaterOrEqual(t, d, 600*time.Millisecond)
		require.LessOrEqual(t, d, 1800*time.Millisecond)
	}

	j.Rand = func() float64 { return 0.5 }
	assert.Equal(t, 1200*time.Millisecond, j.Next())
}

func TestJitter_PaceUsesSleep(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	j := NewJitter(time.Second, time.Second)
	j.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	require.NoError(t, j.Pace(t.Context()))
	require.NoError(t, j.Pace(t.Context()))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
}

func TestJitter_PaceHonoursCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	j := NewJitter(time.Hour, time.Hour)
	start := time.Now()
	err := j.Pace(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHostGate_SpacesSameHost(t *testing.T) {
	t.Parallel()

	g := NewHostGate(NewJitter(40*time.Millisecond, 40*time.Millisecond), 0, 0)

	start := time.Now()
	require.NoError(t, g.Wait(t.Context(), "a.example"))
	// a different host is not held back
	require.NoError(t, g.Wait(t.Context(), "b.example"))
	assert.Less(t, time.Since(start), 30*time.Millisecond)

	require.NoError(t, g.Wait(t.Context(), "a.example"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestHostGate_SharedAcrossWorkers(t *testing.T) {
	t.Parallel()

	g := NewHostGate(NewJitter(20*time.Millisecond, 20*time.Millisecond), 0, 0)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Wait(context.Background(), "same.example"))
		}()
	}
	wg.Wait()
	// four calls need three full gaps between them
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestTokenBucket_Burst(t *testing.T) {
	t.Parallel()

	tb := NewTokenBucket(1000, 2)
	require.NoError(t, tb.Wait(t.Context()))
	require.NoError(t, tb.Wait(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	slow := NewTokenBucket(0.001, 1)
	require.NoError(t, slow.Wait(ctx))
	require.ErrorIs(t, slow.Wait(ctx), context.Canceled)
}

func TestTokenBucket_RefillsWithElapsedTime(t *testing.T) {
	t.Parallel()

	tb := PerMinute(60, 1)
	start := tb.filled
	assert.Zero(t, tb.take(start))
	assert.Equal(t, time.Second, tb.take(start))
	assert.Equal(t, 500*time.Millisecond, tb.take(start.Add(500*time.Millisecond)))
	assert.Zero(t, tb.take(start.Add(time.Second)))
}
