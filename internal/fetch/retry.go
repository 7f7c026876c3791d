package fetch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
)

// RetryPolicy bounds the retry behavior of a fetch
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first attempt
	MaxAttempts int

	// AttemptTimeout bounds a single attempt; zero means no per-attempt timeout
	AttemptTimeout time.Duration

	// InitialInterval is the delay before the first retry
	InitialInterval time.Duration

	// MaxInterval caps the exponential delay growth
	MaxInterval time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     4,
		AttemptTimeout:  DefaultTimeout,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
	}
}

// Retrier is an explicit retry state machine: it tracks the attempt count
// and produces the next delay, independent of how the caller waits.
type Retrier struct {
	policy  RetryPolicy
	backoff *backoff.ExponentialBackOff
	attempt int
}

// NewRetrier creates a retry state machine for the given policy
func NewRetrier(policy RetryPolicy) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	b.Reset()

	return &Retrier{
		policy:  policy,
		backoff: b,
	}
}

// Attempt returns the number of attempts made so far
func (r *Retrier) Attempt() int {
	return r.attempt
}

// RecordAttempt consumes one attempt from the budget
func (r *Retrier) RecordAttempt() {
	r.attempt++
}

// NextDelay returns the delay before the next attempt. ok is false when the
// attempt budget is exhausted.
func (r *Retrier) NextDelay() (delay time.Duration, ok bool) {
	if r.attempt >= r.policy.MaxAttempts {
		return 0, false
	}
	return r.backoff.NextBackOff(), true
}

// Retry runs op until it succeeds, fails permanently, or the attempt budget
// is exhausted. A non-nil return is always a *FetchError carrying the last
// underlying cause.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	logger := logr.FromContextOrDiscard(ctx)
	r := NewRetrier(policy)

	for {
		r.RecordAttempt()

		err := runAttempt(ctx, policy.AttemptTimeout, op)
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return &FetchError{Attempts: r.Attempt(), Err: err}
		}

		delay, ok := r.NextDelay()
		if !ok {
			return &FetchError{Attempts: r.Attempt(), Err: err}
		}

		logger.V(1).Info("retrying fetch attempt",
			"attempt", r.Attempt(), "delay", delay.String(), "cause", err.Error())

		select {
		case <-ctx.Done():
			return &FetchError{Attempts: r.Attempt(), Err: ctx.Err()}
		case <-time.After(delay):
		}
	}
}

func runAttempt(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}
