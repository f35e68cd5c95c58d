package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Multiplier:  2,
		Jitter:      0.5,
	}
}

func TestPolicy_AlwaysFailingStopsAtMaxAttempts(t *testing.T) {
	errBoom := errors.New("boom")
	calls := 0
	var failures []int

	attempts, err := fastPolicy(5).Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	}, func(attempt int, err error) {
		failures = append(failures, attempt)
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, calls)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, failures)
}

func TestPolicy_SucceedsAfterFailures(t *testing.T) {
	calls := 0

	attempts, err := fastPolicy(5).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPolicy_PermanentNotRetried(t *testing.T) {
	errFatal := errors.New("fatal")
	calls := 0

	attempts, err := fastPolicy(5).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFatal)
	}, nil)

	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := fastPolicy(5).Do(ctx, func(context.Context) error {
		return errors.New("never")
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	attempts, err := Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("x")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, p.BaseDelay)
	assert.InDelta(t, 0.5, p.Jitter, 1e-9)
}
