package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterPool hands out one limiter per backend and model so every
// client built in a process shares the same budget.
type RateLimiterPool struct {
	limiters map[string]*rate.Limiter
	rates    map[string]int // Track original rates for consistency check
	mu       sync.Mutex
}

// NewRateLimiterPool creates a new rate limiter pool
func NewRateLimiterPool() *RateLimiterPool {
	return &RateLimiterPool{
		limiters: make(map[string]*rate.Limiter),
		rates:    make(map[string]int),
	}
}

// GetOrCreate returns an existing rate limiter or creates a new one.
// If a limiter exists with a different rate, it logs a warning and keeps the existing one.
func (p *RateLimiterPool) GetOrCreate(key string, requestsPerMinute int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, exists := p.limiters[key]; exists {
		if existingRate := p.rates[key]; existingRate != requestsPerMinute {
			slog.Warn("Rate limiter already exists with different rate, using existing rate",
				"key", key,
				"existing_rpm", existingRate,
				"requested_rpm", requestsPerMinute)
		}
		return limiter
	}

	// Calls are sequential, so a small burst only smooths the first few requests
	rps := float64(requestsPerMinute) / 60.0
	burst := max(1, requestsPerMinute/10)
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	p.limiters[key] = limiter
	p.rates[key] = requestsPerMinute

	slog.Debug("Created rate limiter",
		"key", key,
		"rpm", requestsPerMinute,
		"rps", rps,
		"burst", burst)

	return limiter
}

// Wait blocks until the rate limiter allows the next request and reports
// how long it waited.
func (p *RateLimiterPool) Wait(ctx context.Context, key string, requestsPerMinute int) (time.Duration, error) {
	limiter := p.GetOrCreate(key, requestsPerMinute)
	start := time.Now()
	err := limiter.Wait(ctx)
	return time.Since(start), err
}
