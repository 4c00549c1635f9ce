package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-proof-must-flow/internal/service"
)

var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
	Multiplier:   2,
}

func TestWithRetry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{name: "succeeds first time", wantCalls: 1},
		{name: "succeeds after retries", failures: 2, err: ErrPreconditionFailed, wantCalls: 3},
		{name: "exhausts attempts", failures: 5, err: ErrPreconditionFailed, wantCalls: 3, wantErr: ErrMaxRetries},
		{name: "permanent error stops", failures: 5, err: Permanent(errBoom), wantCalls: 1, wantErr: errBoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			}, fastRetry)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithRetry_ExhaustedKeepsCause(t *testing.T) {
	err := WithRetry(context.Background(), func() error {
		return fmt.Errorf("put ledger: %w", ErrPreconditionFailed)
	}, fastRetry)

	require.ErrorIs(t, err, ErrMaxRetries)
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := fastRetry
	opts.InitialDelay = time.Hour
	opts.MaxDelay = time.Hour

	err := WithRetry(ctx, func() error { return ErrStoreUnavailable }, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", ErrPreconditionFailed)))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(Permanent(errors.New("x"))))
	assert.False(t, IsRetryable(ErrNotFound))
}

func TestUserError(t *testing.T) {
	err := NewUserError("could not read ledger", ErrNotFound)
	assert.Equal(t, "could not read ledger: not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "bare", NewUserError("bare", nil).Error())
}
