package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/voxpost/voxpost/internal/domain"
	"golang.org/x/time/rate"
)

// Limiter throttles outbound publish calls per platform so a burst of
// retries cannot trip platform-side rate limits.
type Limiter interface {
	Allow(platform domain.Platform) bool
	Wait(ctx context.Context, platform domain.Platform) error
}

// InMemoryLimiter keeps one token bucket per platform.
type InMemoryLimiter struct {
	platforms map[domain.Platform]*rate.Limiter
	mu        sync.Mutex
	r         rate.Limit
	b         int
}

// NewInMemoryLimiter creates a limiter allowing `requests` calls per `per`
// with a burst of `burst`.
func NewInMemoryLimiter(requests int, per time.Duration, burst int) Limiter {
	return &InMemoryLimiter{
		platforms: make(map[domain.Platform]*rate.Limiter),
		r:         rate.Every(per / time.Duration(requests)),
		b:         burst,
	}
}

func (l *InMemoryLimiter) limiterFor(platform domain.Platform) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.platforms[platform]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.platforms[platform] = limiter
	}
	return limiter
}

// Allow reports whether a call may proceed right now.
func (l *InMemoryLimiter) Allow(platform domain.Platform) bool {
	return l.limiterFor(platform).Allow()
}

// Wait blocks until a token is available or the context is done.
func (l *InMemoryLimiter) Wait(ctx context.Context, platform domain.Platform) error {
	return l.limiterFor(platform).Wait(ctx)
}
