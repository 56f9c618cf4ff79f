package upstream

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// newTestRetrier returns a Retrier that records backoffs instead of sleeping.
func newTestRetrier(attempts int, waits *[]time.Duration) *Retrier {
	r := NewRetrier(attempts, 100*time.Millisecond, rate.NewLimiter(rate.Inf, 0))
	r.sleep = func(_ context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return nil
	}
	return r
}

// failingFn returns errBoom for the first n calls and nil afterwards.
func failingFn(n int, calls *int) func(int) error {
	return func(int) error {
		*calls++
		if *calls <= n {
			return errBoom
		}
		return nil
	}
}

var errBoom = errors.New("boom")

func TestRetrierDo(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{"no errors", 3, 0, 1, false},
		{"succeeds on last attempt", 3, 2, 3, false},
		{"running out of attempts", 3, 3, 3, true},
		{"zero attempts falls back to default", 0, 5, defNumAttempts, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			r := newTestRetrier(tt.attempts, nil)
			err := r.Do(context.Background(), failingFn(tt.failures, &calls))
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRetryFailed)
				assert.ErrorIs(t, err, errBoom)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetrierBackoffDoubles(t *testing.T) {
	var waits []time.Duration
	var calls int
	r := newTestRetrier(4, &waits)
	_ = r.Do(context.Background(), failingFn(10, &calls))

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, waits)
}

func TestRetrierBackoffIsCapped(t *testing.T) {
	r := &Retrier{InitialBackoff: 20 * time.Second}
	assert.Equal(t, maxBackoff, r.backoff(5))
	assert.Equal(t, time.Duration(0), r.backoff(0))
}

func TestRetrierStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(3, time.Hour, nil)

	var calls int
	err := r.Do(ctx, func(int) error {
		calls++
		cancel()
		return errBoom
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetrierFetchRetriesNon200(t *testing.T) {
	var calls int
	fetcher := FetcherFunc(func(ctx context.Context, url string, header http.Header) (*Response, error) {
		calls++
		if calls < 3 {
			return &Response{StatusCode: http.StatusBadGateway}, nil
		}
		return &Response{StatusCode: http.StatusOK, Body: []byte("[]")}, nil
	})

	resp, err := newTestRetrier(3, nil).Fetch(context.Background(), fetcher, "https://api.example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(resp.Body))
	assert.Equal(t, 3, calls)
}

func TestRetrierFetchReportsLastStatus(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, url string, header http.Header) (*Response, error) {
		return &Response{StatusCode: http.StatusNotFound}, nil
	})

	_, err := newTestRetrier(3, nil).Fetch(context.Background(), fetcher, "https://api.example.com/x", nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "https://api.example.com/x", statusErr.URL)
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, NewLimiter(0, 0).Limit())

	lim := NewLimiter(60, 0)
	assert.InDelta(t, 1.0, float64(lim.Limit()), 0.0001)
	assert.Equal(t, 1, lim.Burst())
}
