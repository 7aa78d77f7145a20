package crawl

import "time"

// RateLimiter spaces sequential page fetches by a fixed interval.
type RateLimiter struct {
	ticker   *time.Ticker
	interval time.Duration
}

// NewRateLimiter creates a rate limiter with the given minimum interval
// between operations.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		ticker:   time.NewTicker(interval),
		interval: interval,
	}
}

// Wait blocks until the next tick.
func (rl *RateLimiter) Wait() {
	<-rl.ticker.C
}

// Stop releases the limiter's resources. Typically deferred.
func (rl *RateLimiter) Stop() {
	rl.ticker.Stop()
}
