package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Policy bounds a retry loop. Attempt n (n >= 1) waits WaitMin * 2^(n-1),
// capped at WaitMax.
type Policy struct {
	MaxRetries int
	WaitMin    time.Duration
	WaitMax    time.Duration
}

// Backoff returns the wait before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	wait := p.WaitMin * time.Duration(1<<uint(attempt-1))
	if p.WaitMax > 0 && wait > p.WaitMax {
		wait = p.WaitMax
	}
	return wait
}

// StatusError is a non-2xx response that has already been drained.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream status %d", e.Status)
}

// Retryable reports whether the status is worth another attempt. Client
// errors never are.
func (e *StatusError) Retryable() bool {
	return e.Status >= 500 && e.Status != http.StatusNotImplemented
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry runs op until it succeeds, returns a non-retryable error, or the
// policy is exhausted. A *StatusError in the 4xx range stops the loop.
func Retry(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.Backoff(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		err = op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
