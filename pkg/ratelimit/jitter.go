package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Range bounds a uniformly random wait, both ends inclusive
type Range struct {
	Min time.Duration
	Max time.Duration
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Jitter spaces out requests with randomized waits drawn from a Range
type Jitter struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// Option configures a Jitter
type Option func(*Jitter)

// WithSleep replaces the sleep function, tests pass one that returns at once
func WithSleep(fn SleepFunc) Option {
	return func(j *Jitter) { j.sleep = fn }
}

// WithSeed makes the sequence of drawn durations reproducible
func WithSeed(seed uint64) Option {
	return func(j *Jitter) { j.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// NewJitter creates a Jitter backed by a time-seeded source and Sleep
func NewJitter(opts ...Option) *Jitter {
	seed := uint64(time.Now().UnixNano())
	j := &Jitter{
		rng:   rand.New(rand.NewPCG(seed, seed>>1)),
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Draw picks a duration uniformly from r. An inverted range yields r.Min.
func (j *Jitter) Draw(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return r.Min + time.Duration(j.rng.Int64N(int64(r.Max-r.Min)+1))
}

// Wait blocks for a random duration drawn from r and returns it
func (j *Jitter) Wait(ctx context.Context, r Range) (time.Duration, error) {
	d := j.Draw(r)
	return d, j.sleep(ctx, d)
}

// Pause blocks for exactly d
func (j *Jitter) Pause(ctx context.Context, d time.Duration) error {
	return j.sleep(ctx, d)
}

// Sleep waits for the given duration or until context is cancelled
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoSleep returns immediately unless ctx is already done
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
