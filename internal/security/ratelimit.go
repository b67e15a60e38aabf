package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces per-source token-bucket limits.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps requests per second per source with the given
// burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

func (rl *RateLimiter) visitor(source string, now time.Time) *rate.Limiter {
	v, ok := rl.visitors[source]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[source] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Allow reports whether source may make a request now, consuming a token.
func (rl *RateLimiter) Allow(source string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	return rl.visitor(source, now).AllowN(now, 1)
}

// Remaining returns the whole tokens available to source.
func (rl *RateLimiter) Remaining(source string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.visitors[source]
	if !ok {
		return rl.burst
	}
	n := int(v.limiter.TokensAt(rl.now()))
	if n < 0 {
		return 0
	}
	return n
}

// Cleanup removes sources idle for longer than idle and returns how many
// were removed.
func (rl *RateLimiter) Cleanup(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	removed := 0
	for source, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, source)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sources.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}
