package ingest

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// callerLimiter holds one token bucket per caller address.
type callerLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rate       rate.Limit
	burst      int
}

func newCallerLimiter(perMinute int) *callerLimiter {
	return &callerLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rate:       rate.Limit(float64(perMinute) / 60.0),
		burst:      max(1, perMinute),
	}
}

func (c *callerLimiter) Allow(caller string) bool {
	return c.allowAt(caller, time.Now())
}

func (c *callerLimiter) allowAt(caller string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, exists := c.limiters[caller]
	if !exists {
		limiter = rate.NewLimiter(c.rate, c.burst)
		c.limiters[caller] = limiter
	}
	c.lastAccess[caller] = now
	return limiter.AllowN(now, 1)
}

// Evict drops limiters for callers not seen within maxAge.
func (c *callerLimiter) Evict(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for caller, last := range c.lastAccess {
		if last.Before(cutoff) {
			delete(c.limiters, caller)
			delete(c.lastAccess, caller)
		}
	}
}

func (c *callerLimiter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}
