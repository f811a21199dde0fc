// Package retry implements the bounded exponential-backoff policy applied to
// every external-service call in the pipeline.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config bounds one retried operation.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// ExhaustedError is returned after the final attempt fails. RateLimited marks
// failures whose signature indicates a quota or rate-limit condition, so
// callers can report it distinctly.
type ExhaustedError struct {
	Attempts    int
	RateLimited bool
	Err         error
}

func (e *ExhaustedError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("rate limit exceeded after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs op up to cfg.MaxAttempts times, sleeping BaseDelay * 2^(attempt-1)
// after each failed attempt. The sleep honors ctx cancellation.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		wait := cfg.BaseDelay << (attempt - 1)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return &ExhaustedError{Attempts: attempt, RateLimited: IsRateLimit(lastErr), Err: ctx.Err()}
		}
	}

	return &ExhaustedError{Attempts: attempts, RateLimited: IsRateLimit(lastErr), Err: lastErr}
}

// IsRateLimit reports whether err looks like a quota or rate-limit rejection
// from an external API.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429")
}
