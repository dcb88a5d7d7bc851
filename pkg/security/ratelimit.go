// Package security provides inbound protection for Hosts.
package security

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter bounds the rate of inbound create/invoke calls, globally and
// per calling peer. A rejected call surfaces to the caller as an overload,
// the same failure mode as a full worker queue.
type RateLimiter struct {
	globalLimiter *rate.Limiter
	peerLimiters  map[string]*rate.Limiter
	mu            sync.RWMutex

	requestsPerSecond float64
	burst             int
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond with the
// given burst, applied both globally and to each peer individually.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		globalLimiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		peerLimiters:      make(map[string]*rate.Limiter),
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
	}
}

// Allow reports whether a call from the given peer may proceed now.
func (rl *RateLimiter) Allow(peerID string) bool {
	if !rl.globalLimiter.Allow() {
		return false
	}
	return rl.peerLimiter(peerID).Allow()
}

func (rl *RateLimiter) peerLimiter(peerID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.peerLimiters[peerID]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring the write lock.
	if limiter, exists := rl.peerLimiters[peerID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(rl.requestsPerSecond), rl.burst)
	rl.peerLimiters[peerID] = limiter
	return limiter
}
