package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BackoffPolicy is a linear retry schedule. The first retry waits Initial;
// every further retry waits Step longer. Retrying stops once the next wait
// would reach Ceiling. The number of attempts is otherwise unbounded.
type BackoffPolicy struct {
	// Initial is the wait before the first retry.
	Initial time.Duration

	// Step is added to the wait after every failed attempt.
	Step time.Duration

	// Ceiling ends retrying once the current wait is no longer below it.
	Ceiling time.Duration
}

// DefaultBackoffPolicy returns a policy starting at 5s, growing by 5s, and
// bounded by maxWait.
func DefaultBackoffPolicy(maxWait time.Duration) BackoffPolicy {
	return BackoffPolicy{
		Initial: 5 * time.Second,
		Step:    5 * time.Second,
		Ceiling: maxWait,
	}
}

// Allows reports whether a retry after waiting delay is permitted.
func (p BackoffPolicy) Allows(delay time.Duration) bool {
	return delay < p.Ceiling
}

// Next returns the wait that follows delay.
func (p BackoffPolicy) Next(delay time.Duration) time.Duration {
	return delay + p.Step
}

// Validate checks that the policy terminates.
func (p BackoffPolicy) Validate() error {
	if p.Initial < 0 {
		return fmt.Errorf("backoff initial must be >= 0 (got %v)", p.Initial)
	}
	if p.Step <= 0 {
		return fmt.Errorf("backoff step must be > 0 (got %v)", p.Step)
	}
	return nil
}

// backoff is the retry state of one logical call. It lives across every
// exchange of the call, so replays after invalid or lagged responses keep
// growing the wait towards the ceiling.
type backoff struct {
	policy BackoffPolicy
	delay  time.Duration
}

func newBackoff(policy BackoffPolicy) *backoff {
	return &backoff{policy: policy, delay: policy.Initial}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// sleepContext is the default Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// retryWithBackoff runs fn until it succeeds or b gives up. Write requests
// and context cancellations are never retried. The grown wait is kept in b.
func retryWithBackoff(ctx context.Context, b *backoff, write bool, sleep Sleeper, logger zerolog.Logger, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		class := errorClassOf(err)

		if write {
			logger.Error().Err(err).Msg("Write request failed, not retrying")
			return err
		}
		if !shouldRetry(err) {
			return err
		}
		if !b.policy.Allows(b.delay) {
			retryExhaustedTotal.WithLabelValues(string(class)).Inc()
			logger.Error().
				Err(err).
				Str("error_class", string(class)).
				Int("attempts", attempt).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
		}

		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(b.delay.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", b.delay).
			Msg("Trying request again after backoff")

		if err := sleep(ctx, b.delay); err != nil {
			return err
		}
		b.delay = b.policy.Next(b.delay)
	}
}

// shouldRetry reports whether a failed exchange is transient. Any failure of
// the exchange itself is; cancellation is not.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrContextCancelled) {
		return false
	}
	return true
}
