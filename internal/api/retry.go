package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/lamim/exambank/internal/config"
	"github.com/lamim/exambank/internal/metrics"
)

// RateLimitBackoffMultiplier is the multiplier for rate limit backoff (3^n)
const RateLimitBackoffMultiplier = 3

// APIError represents an error returned by a model backend
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

func isStatusCodeRetryable(statusCode int) bool {
	// Retry on rate limits and server errors
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

func isRateLimitError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// retrier runs one logical model call, retrying transient failures with
// exponential backoff and jitter. Both backends share it.
type retrier struct {
	backend    string
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
	metrics    *metrics.Collector
	rng        *rand.Rand
	sleep      func(ctx context.Context, d time.Duration) error
}

func newRetrier(backend string, m config.ModelConfig, logger *slog.Logger, collector *metrics.Collector) *retrier {
	return &retrier{
		backend:    backend,
		maxRetries: m.Retries(),
		baseDelay:  time.Duration(m.RetryBaseDelayMS) * time.Millisecond,
		logger:     logger.With("component", "api", "backend", backend),
		metrics:    collector,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff returns the delay before the given retry attempt (1-based).
// Rate limit responses back off on a 3^n curve, everything else on 2^(n-1).
func (r *retrier) backoff(attempt int, lastErr error) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * r.baseDelay
	if isRateLimitError(lastErr) {
		delay = time.Duration(math.Pow(RateLimitBackoffMultiplier, float64(attempt))) * r.baseDelay
	}
	jitter := 0.9 + r.rng.Float64()*0.2
	return time.Duration(float64(delay) * jitter)
}

func (r *retrier) do(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt, lastErr)
			r.metrics.IncrementRetry(r.backend)
			r.logger.Warn("Retrying model request",
				"attempt", attempt,
				"max_retries", r.maxRetries,
				"backoff", delay,
				"is_rate_limit", isRateLimitError(lastErr),
				"error", lastErr)

			if err := r.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		start := time.Now()
		text, err := call(ctx)
		r.metrics.RecordModelRequest(r.backend, time.Since(start), err == nil)
		if err == nil {
			r.logger.Debug("Model request complete",
				"attempt", attempt+1,
				"duration", time.Since(start),
				"response_length", len(text))
			return text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
