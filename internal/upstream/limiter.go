package upstream

import (
	"time"

	"golang.org/x/time/rate"
)

// NewLimiter returns a token bucket allowing perMinute upstream requests per
// minute. perMinute <= 0 disables throttling.
func NewLimiter(perMinute int, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}
