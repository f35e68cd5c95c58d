// Package retry provides a bounded exponential backoff policy with jitter.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default policy values.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
	DefaultMultiplier  = 2.0
	DefaultJitter      = 0.5
)

// Policy bounds how often and how fast an operation is re-attempted.
type Policy struct {
	MaxAttempts int           // total attempts including the first, >= 1
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap for a single delay
	Multiplier  float64       // growth factor between delays
	Jitter      float64       // randomization factor in [0, 1]
}

// DefaultPolicy returns the policy used at the RPC boundary.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
		Jitter:      DefaultJitter,
	}
}

// FailureFunc is called after every failed attempt, including the last one.
type FailureFunc func(attempt int, err error)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a Permanent error, the context is
// done, or MaxAttempts is reached. It returns the number of attempts made and
// the last error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, onFailure FailureFunc) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if onFailure != nil {
			onFailure(attempts, err)
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return backoff.Permanent(perm.err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(maxAttempts-1)), ctx)
	err := backoff.Retry(operation, b)
	return attempts, err
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.RandomizationFactor = p.Jitter
	// Attempts bound the loop, not wall time.
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
