// Package backoff provides jittered exponential backoff and randomized
// pacing delays used between upstream calls.
package backoff

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"
)

// Policy computes jittered exponential delays. The delay before attempt n
// (zero-based) is base*2^n halved plus random jitter, capped at Max.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// Default returns a policy with sane defaults.
func Default() Policy {
	return Policy{
		Base: 250 * time.Millisecond,
		Max:  5 * time.Second,
	}
}

// Delay returns the wait duration before the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	maxDelay := p.Max
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	delay := float64(base) * math.Pow(2, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

// Range is a randomized pacing window applied between requests to mimic
// human browsing cadence.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Duration picks a random duration within the range.
func (r Range) Duration() time.Duration {
	if r.Min < 0 {
		r.Min = 0
	}
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + randomJitter(r.Max-r.Min)
}

// Wait sleeps for d, returning early if the context finishes.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Pace sleeps for a random duration within the range, respecting the context.
func Pace(ctx context.Context, r Range) error {
	return Wait(ctx, r.Duration())
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
