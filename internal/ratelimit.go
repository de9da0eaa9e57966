package internal

import (
	"sync"
	"time"
)

// Default rate limit applied to endpoints without a specific entry.
const (
	defaultRateLimit  = 100
	defaultRateWindow = time.Minute
)

type limitConfig struct {
	limit  int
	window time.Duration
}

// RateLimitResult is the outcome of a limit check. When Allowed is true the
// request has already been counted against the window.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// RateLimiter is an in-memory sliding-window request counter keyed by API
// endpoint. Checking and reserving are a single atomic step: two concurrent
// checks can never both see the last remaining slot. State is memory-only
// and resets on process restart; this is abuse mitigation, not a hard quota.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limits   map[string]limitConfig
	now      func() time.Time
}

// NewRateLimiter creates a limiter with the standard per-endpoint overrides.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limits: map[string]limitConfig{
			"/auth/login":  {limit: 5, window: time.Minute},
			"/auth/signup": {limit: 3, window: time.Minute},
			"/chat":        {limit: 30, window: time.Minute},
			"/upload":      {limit: 10, window: time.Minute},
			"/api-keys":    {limit: 20, window: time.Minute},
		},
		now: time.Now,
	}
}

// CheckLimit reports whether a request to endpoint is allowed right now.
// An allowed check records the request as a side effect; there is no
// separate commit step. Stale timestamps are pruned lazily on each check.
func (rl *RateLimiter) CheckLimit(endpoint string) RateLimitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	config, ok := rl.limits[endpoint]
	if !ok {
		config = limitConfig{limit: defaultRateLimit, window: defaultRateWindow}
	}

	windowStart := now.Add(-config.window)
	recent := rl.requests[endpoint][:0]
	for _, ts := range rl.requests[endpoint] {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}

	allowed := len(recent) < config.limit
	remaining := config.limit - len(recent)
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(config.window)
	if len(recent) > 0 {
		resetAt = recent[0].Add(config.window)
	}

	if allowed {
		recent = append(recent, now)
	}
	rl.requests[endpoint] = recent

	return RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
		Limit:     config.limit,
	}
}

// ClearLimit resets the window for a single endpoint.
func (rl *RateLimiter) ClearLimit(endpoint string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, endpoint)
}

// ClearAll resets all windows.
func (rl *RateLimiter) ClearAll() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requests = make(map[string][]time.Time)
}
