package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func TestRetryRecoversFromLock(t *testing.T) {
	calls := 0
	err := retry(context.Background(), fastRetry(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("failed to create trade: %w", sqlite3.Error{Code: sqlite3.ErrBusy})
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	locked := sqlite3.Error{Code: sqlite3.ErrLocked}
	err := retry(context.Background(), fastRetry(), func() error {
		calls++
		return locked
	})

	assert.True(t, isLocked(err))
	assert.Equal(t, 3, calls)
}

func TestRetryIgnoresOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("constraint failed")
	err := retry(context.Background(), fastRetry(), func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry(ctx, RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 2}, func() error {
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	})

	assert.ErrorIs(t, err, context.Canceled)
}
