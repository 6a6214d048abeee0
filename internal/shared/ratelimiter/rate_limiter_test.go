package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, time.Hour)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.WaitIfNeeded(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiter_WaitsForNextWindow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(2, 80*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.WaitIfNeeded(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRateLimiter_ContextCanceled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, time.Hour)
	require.NoError(t, rl.WaitIfNeeded(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.WaitIfNeeded(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_ReservesSlotsInFutureWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }
	rl.lastReset = now

	require.NoError(t, rl.WaitIfNeeded(context.Background()))

	// 2回目以降は未来のウィンドウに予約されるため、キャンセル済みのctxでは待てない
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.WaitIfNeeded(ctx), context.Canceled)
	assert.Equal(t, now.Add(time.Minute), rl.lastReset)
	assert.Equal(t, 1, rl.count)
}

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, time.Hour)
	for i := 0; i < 10; i++ {
		assert.NoError(t, rl.WaitIfNeeded(context.Background()))
	}
}
