package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{MaxRetries: 3, WaitMin: time.Second, WaitMax: 3 * time.Second}

	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 3*time.Second, p.Backoff(3))
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	p := Policy{MaxRetries: 3, WaitMin: time.Millisecond}
	calls := 0

	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnClientStatus(t *testing.T) {
	p := Policy{MaxRetries: 3, WaitMin: time.Millisecond}
	calls := 0

	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		return &StatusError{Status: http.StatusBadRequest}
	})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsOnServerStatus(t *testing.T) {
	p := Policy{MaxRetries: 3, WaitMin: time.Millisecond}
	calls := 0

	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		return &StatusError{Status: http.StatusServiceUnavailable}
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestRetry_Permanent(t *testing.T) {
	p := Policy{MaxRetries: 3, WaitMin: time.Millisecond}
	boom := errors.New("bad payload")
	calls := 0

	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		return Permanent(boom)
	})

	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRetry_ContextDoneDuringWait(t *testing.T) {
	p := Policy{MaxRetries: 3, WaitMin: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Retry(ctx, p, func(context.Context) error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
