package retry

import (
	"context"
	"math/rand"
	"time"

	"feedsync/internal/logger"
)

// Policy bounds the backoff loop. Delay grows as baseDelay * 2^attempt, capped
// at MaxDelay, with up to 50% jitter added on top.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Executor wraps remote calls with bounded exponential backoff on transient
// failures. Non-retryable errors are returned immediately.
type Executor struct {
	policy Policy
	logger *logger.Logger
}

func NewExecutor(policy Policy, logger *logger.Logger) *Executor {
	if policy.MaxRetries <= 0 {
		policy = DefaultPolicy()
	}
	return &Executor{policy: policy, logger: logger}
}

// Do runs fn, retrying transient failures up to the policy limit. The op name
// is only used for logging.
func (e *Executor) Do(ctx context.Context, op string, fn func() error) error {
	return e.DoWith(ctx, op, fn, IsRetryable)
}

// DoWith is Do with a caller-supplied retry predicate, for callers that handle
// part of the taxonomy themselves (e.g. the fetch controller pauses on
// rate limiting instead of retrying it).
func (e *Executor) DoWith(ctx context.Context, op string, fn func() error, retryIf func(error) bool) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !retryIf(err) || attempt >= e.policy.MaxRetries {
			return err
		}

		delay := e.backoff(attempt)
		if e.logger != nil {
			e.logger.Warn("%s failed (attempt %d/%d), retrying in %s: %v",
				op, attempt+1, e.policy.MaxRetries, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (e *Executor) backoff(attempt int) time.Duration {
	delay := e.policy.BaseDelay << uint(attempt)
	if delay > e.policy.MaxDelay || delay <= 0 {
		delay = e.policy.MaxDelay
	}
	// Up to 50% jitter so concurrent callers spread out.
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}
