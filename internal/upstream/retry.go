package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// defNumAttempts is the default number of attempts per upstream call.
	defNumAttempts = 3
	// maxBackoff caps the wait between two attempts.
	maxBackoff = 30 * time.Second
)

// ErrRetryFailed is returned when the callback did not succeed within the
// allowed number of attempts. The last callback error is wrapped alongside.
var ErrRetryFailed = errors.New("upstream call did not succeed within the allowed number of attempts")

// StatusError reports a response whose status is not 200.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded with %d for url %s", e.StatusCode, e.URL)
}

// Retrier runs a callback up to MaxAttempts times. Every attempt first waits
// on Limiter, attempts after the first additionally back off exponentially
// starting at InitialBackoff.
type Retrier struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Limiter        *rate.Limiter

	// sleep exists so tests do not have to wait for real backoffs.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier returns a Retrier. maxAttempts <= 0 falls back to 3 attempts and
// a nil limiter means no throttling.
func NewRetrier(maxAttempts int, initialBackoff time.Duration, lim *rate.Limiter) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = defNumAttempts
	}
	if lim == nil {
		lim = NewLimiter(0, 0)
	}
	return &Retrier{
		MaxAttempts:    maxAttempts,
		InitialBackoff: initialBackoff,
		Limiter:        lim,
		sleep:          sleepContext,
	}
}

// Do calls fn until it returns nil or the attempts are used up. It returns
// early with the context error if ctx is cancelled.
func (r *Retrier) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := r.attempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := r.doSleep(ctx, r.backoff(attempt)); err != nil {
				return err
			}
		}
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w (%d attempts): %w", ErrRetryFailed, attempts, lastErr)
}

// Fetch performs a GET through f and retries on transport errors and on any
// status other than 200.
func (r *Retrier) Fetch(ctx context.Context, f Fetcher, url string, header http.Header) (*Response, error) {
	var resp *Response
	err := r.Do(ctx, func(int) error {
		got, err := f.Fetch(ctx, url, header)
		if err != nil {
			return err
		}
		if got == nil {
			return fmt.Errorf("empty response for url %s", url)
		}
		if got.StatusCode != http.StatusOK {
			return &StatusError{URL: url, StatusCode: got.StatusCode}
		}
		resp = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *Retrier) attempts() int {
	if r == nil || r.MaxAttempts <= 0 {
		return defNumAttempts
	}
	return r.MaxAttempts
}

// backoff returns InitialBackoff * 2^(attempt-1), capped at maxBackoff.
func (r *Retrier) backoff(attempt int) time.Duration {
	if r.InitialBackoff <= 0 || attempt <= 0 {
		return 0
	}
	delay := r.InitialBackoff << uint(attempt-1)
	if delay <= 0 || delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

func (r *Retrier) doSleep(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
