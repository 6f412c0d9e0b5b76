// Package ratelimit paces requests to the upstream with randomized waits.
//
// The upstream throttles clients that hit it at a steady cadence, so every
// network call is followed or preceded by a wait drawn uniformly from a
// Range, and consecutive accounts are separated by a fixed Pause.
//
// Usage:
//
//	j := ratelimit.NewJitter()
//	slept, err := j.Wait(ctx, ratelimit.Range{Min: 5 * time.Second, Max: 10 * time.Second})
//	if err != nil {
//	    return err // ctx cancelled
//	}
//	err = j.Pause(ctx, 10*time.Second)
//
// Tests use WithSleep(ratelimit.NoSleep) to keep the same call sequence
// without blocking, and WithSeed for reproducible draws.
package ratelimit
