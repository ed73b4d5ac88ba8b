package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitWithinBudgetDoesNotBlock(t *testing.T) {
	limiter := NewCostLimiter(100, 10)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background(), 50))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.InDelta(t, 50, limiter.Available(), 1)
}

func TestWaitBlocksUntilBudgetRestores(t *testing.T) {
	// 100 point budget restoring 1000 points/second: draining it forces a
	// short, measurable wait.
	limiter := NewCostLimiter(100, 1000)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, 100))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, 50))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	limiter := NewCostLimiter(100, 0.001)
	require.NoError(t, limiter.Wait(context.Background(), 100))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx, 100)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitCapsOversizedCost(t *testing.T) {
	limiter := NewCostLimiter(100, 1000)

	// A cost above the budget can never fit; it is capped instead of
	// deadlocking.
	require.NoError(t, limiter.Wait(context.Background(), 500))
}

func TestReconcileAdjustsForActualCost(t *testing.T) {
	limiter := NewCostLimiter(100, 0.001)

	require.NoError(t, limiter.Wait(context.Background(), 60))
	// The call turned out cheaper than estimated.
	limiter.Reconcile(60, 10)
	assert.InDelta(t, 90, limiter.Available(), 1)

	// And one that was more expensive.
	limiter.Reconcile(10, 40)
	assert.InDelta(t, 60, limiter.Available(), 1)
}

func TestSyncAvailableIsAuthoritative(t *testing.T) {
	limiter := NewCostLimiter(1000, 0.001)

	require.NoError(t, limiter.Wait(context.Background(), 100))
	limiter.SyncAvailable(250)
	assert.InDelta(t, 250, limiter.Available(), 1)
}

func TestBudgetRestoresOverTime(t *testing.T) {
	limiter := NewCostLimiter(100, 1000)

	require.NoError(t, limiter.Wait(context.Background(), 100))
	time.Sleep(30 * time.Millisecond)
	assert.Greater(t, limiter.Available(), 10.0)
}
