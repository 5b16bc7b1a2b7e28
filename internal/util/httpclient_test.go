package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, 5*time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, 5*time.Millisecond, func() error {
		calls++
		return errors.New("still broken")
	})
	require.EqualError(t, err, "still broken")
	assert.Equal(t, 3, calls)
}

func TestRetrySingleAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 1, time.Millisecond, 5*time.Millisecond, func() error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 5, time.Second, time.Second, func() error {
		return errors.New("always")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
