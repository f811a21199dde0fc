package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 4, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	cause := errors.New("boom")
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return cause
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error %v is not *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if exhausted.RateLimited {
		t.Error("RateLimited = true for a generic failure")
	}
	if !errors.Is(err, cause) {
		t.Error("exhausted error does not wrap the last cause")
	}
}

func TestDoBacksOffExponentially(t *testing.T) {
	base := 20 * time.Millisecond
	start := time.Now()
	_ = Do(context.Background(), Config{MaxAttempts: 3, BaseDelay: base}, func(ctx context.Context) error {
		return errors.New("still failing")
	})
	// Two sleeps: base and 2*base.
	if elapsed := time.Since(start); elapsed < 3*base {
		t.Errorf("elapsed = %v, want at least %v", elapsed, 3*base)
	}
}

func TestDoMarksRateLimitExhaustion(t *testing.T) {
	err := Do(context.Background(), Config{MaxAttempts: 2, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		return errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error %v is not *ExhaustedError", err)
	}
	if !exhausted.RateLimited {
		t.Error("RateLimited = false for a quota rejection")
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Config{MaxAttempts: 5, BaseDelay: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error %v does not wrap context.Canceled", err)
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Config{}, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIsRateLimit(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Rate limit exceeded"), true},
		{errors.New("rate_limit_exceeded"), true},
		{errors.New("quota exceeded for project"), true},
		{errors.New("RESOURCE_EXHAUSTED"), true},
		{errors.New("HTTP 429 Too Many Requests"), true},
		{errors.New("connection refused"), false},
		{errors.New("invalid argument"), false},
	}

	for _, tc := range cases {
		if got := IsRateLimit(tc.err); got != tc.want {
			t.Errorf("IsRateLimit(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
