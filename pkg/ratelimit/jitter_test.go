package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawStaysInRange(t *testing.T) {
	j := NewJitter(WithSeed(7))
	r := Range{Min: 5 * time.Second, Max: 10 * time.Second}

	for i := 0; i < 1000; i++ {
		d := j.Draw(r)
		assert.GreaterOrEqual(t, d, r.Min)
		assert.LessOrEqual(t, d, r.Max)
	}
}

func TestDrawDegenerateRanges(t *testing.T) {
	j := NewJitter(WithSeed(1))

	assert.Equal(t, 10*time.Second, j.Draw(Range{Min: 10 * time.Second, Max: 10 * time.Second}))
	assert.Equal(t, 3*time.Second, j.Draw(Range{Min: 3 * time.Second, Max: time.Second}))
	assert.Equal(t, time.Duration(0), j.Draw(Range{}))
}

func TestDrawIsReproducibleWithSeed(t *testing.T) {
	r := Range{Min: time.Second, Max: 3 * time.Second}
	a, b := NewJitter(WithSeed(42)), NewJitter(WithSeed(42))

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Draw(r), b.Draw(r))
	}
}

func TestWaitUsesInjectedSleep(t *testing.T) {
	var slept []time.Duration
	j := NewJitter(WithSeed(3), WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	d, err := j.Wait(context.Background(), Range{Min: time.Second, Max: 3 * time.Second})
	require.NoError(t, err)
	require.NoError(t, j.Pause(context.Background(), 10*time.Second))

	assert.Equal(t, []time.Duration{d, 10 * time.Second}, slept)
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestWaitReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	j := NewJitter()
	_, err := j.Wait(ctx, Range{Min: time.Hour, Max: 2 * time.Hour})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNoSleep(t *testing.T) {
	assert.NoError(t, NoSleep(context.Background(), time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NoSleep(ctx, time.Hour), context.Canceled)
}
