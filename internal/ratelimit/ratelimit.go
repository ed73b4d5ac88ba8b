package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CostLimiter models a cost-based leaky bucket like the one the Shopify
// GraphQL API enforces: every call consumes a number of points from a budget
// that regenerates at restoreRate points per second. Wait throttles until the
// budget covers the estimated cost; it never rejects.
//
// One instance must be shared by every storefront client in the process, since
// the remote quota is shared.
type CostLimiter struct {
	mu          sync.Mutex
	maxCost     float64
	currentCost float64
	restoreRate float64
	lastRestore time.Time
}

func NewCostLimiter(maxCost, restoreRate float64) *CostLimiter {
	return &CostLimiter{
		maxCost:     maxCost,
		restoreRate: restoreRate,
		lastRestore: time.Now(),
	}
}

// Wait blocks until the budget can absorb the estimated cost, then reserves
// it. Returns early only when ctx is done.
func (l *CostLimiter) Wait(ctx context.Context, cost float64) error {
	if cost > l.maxCost {
		cost = l.maxCost
	}
	for {
		l.mu.Lock()
		l.restore()
		if l.currentCost+cost <= l.maxCost {
			l.currentCost += cost
			l.mu.Unlock()
			return nil
		}
		deficit := l.currentCost + cost - l.maxCost
		wait := time.Duration(deficit / l.restoreRate * float64(time.Second))
		l.mu.Unlock()

		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reconcile corrects the reserved estimate with the actual cost the remote
// reported for the call, so drift between estimates and reality self-corrects.
func (l *CostLimiter) Reconcile(estimated, actual float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentCost += actual - estimated
	l.clamp()
}

// SyncAvailable resets the tracked budget from the remote's reported
// currently-available points, the authoritative figure.
func (l *CostLimiter) SyncAvailable(available float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentCost = l.maxCost - available
	l.clamp()
	l.lastRestore = time.Now()
}

// Available returns the points currently left in the budget.
func (l *CostLimiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.restore()
	return l.maxCost - l.currentCost
}

// restore regenerates budget for the elapsed time. Caller holds the lock.
func (l *CostLimiter) restore() {
	now := time.Now()
	elapsed := now.Sub(l.lastRestore).Seconds()
	if elapsed > 0 {
		l.currentCost -= elapsed * l.restoreRate
		l.lastRestore = now
	}
	l.clamp()
}

func (l *CostLimiter) clamp() {
	if l.currentCost < 0 {
		l.currentCost = 0
	}
	if l.currentCost > l.maxCost {
		l.currentCost = l.maxCost
	}
}
