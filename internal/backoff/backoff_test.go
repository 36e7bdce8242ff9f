package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicyDelayGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := Policy{Base: 100 * time.Millisecond, Max: time.Second}

	for attempt := 0; attempt < 8; attempt++ {
		d := p.Delay(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		// Delay is half the capped exponential plus jitter bounded by the
		// same half, so it never exceeds the cap.
		require.LessOrEqual(t, d, time.Second)
	}

	// Later attempts sit at the cap's half or above.
	require.GreaterOrEqual(t, p.Delay(10), 500*time.Millisecond)
}

func TestPolicyDelayZeroValueUsesDefaults(t *testing.T) {
	t.Parallel()

	var p Policy
	d := p.Delay(0)
	require.Greater(t, d, time.Duration(0))
	require.LessOrEqual(t, d, 5*time.Second)
}

func TestRangeDuration(t *testing.T) {
	t.Parallel()

	r := Range{Min: 10 * time.Millisecond, Max: 50 * time.Millisecond}
	for i := 0; i < 50; i++ {
		d := r.Duration()
		require.GreaterOrEqual(t, d, r.Min)
		require.Less(t, d, r.Max)
	}
}

func TestRangeDurationDegenerate(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Duration(0), Range{}.Duration())
	require.Equal(t, 5*time.Millisecond, Range{Min: 5 * time.Millisecond, Max: time.Millisecond}.Duration())
}

func TestWaitRespectsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Wait(ctx, time.Minute)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitZeroIsImmediate(t *testing.T) {
	t.Parallel()

	start := time.Now()
	require.NoError(t, Wait(context.Background(), 0))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}
