package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"
)

type fakeStatusError struct {
	temporary bool
	wait      time.Duration
}

func (e *fakeStatusError) Error() string             { return "status error" }
func (e *fakeStatusError) Temporary() bool           { return e.temporary }
func (e *fakeStatusError) RetryAfter() time.Duration { return e.wait }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "ETIMEDOUT",
			err:      syscall.ETIMEDOUT,
			expected: true,
		},
		{
			name:     "ECONNRESET",
			err:      syscall.ECONNRESET,
			expected: true,
		},
		{
			name:     "ENOENT (not retryable)",
			err:      syscall.ENOENT,
			expected: false,
		},
		{
			name:     "connection reset in message",
			err:      errors.New("connection reset by peer"),
			expected: true,
		},
		{
			name:     "generic error (not retryable)",
			err:      errors.New("invalid argument"),
			expected: false,
		},
		{
			name:     "PathError with ETIMEDOUT",
			err:      &os.PathError{Op: "open", Path: "/test", Err: syscall.ETIMEDOUT},
			expected: true,
		},
		{
			name:     "temporary status error",
			err:      fmt.Errorf("wrapped: %w", &fakeStatusError{temporary: true}),
			expected: true,
		},
		{
			name:     "permanent status error",
			err:      &fakeStatusError{temporary: false},
			expected: false,
		},
		{
			name:     "context canceled (not retryable)",
			err:      context.Canceled,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryableError(tt.err)
			if result != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, expected %v",
					tt.err, result, tt.expected)
			}
		})
	}
}

func testRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 10 * time.Millisecond,
		MaxWait:     100 * time.Millisecond,
		Logger:      NopLogger(),
	}
}

func TestRetryWithBackoff_ImmediateSuccess(t *testing.T) {
	attempts := 0

	result, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (int, error) {
		attempts++
		return 42, nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != 42 {
		t.Errorf("Expected result 42, got: %d", result)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	attempts := 0

	result, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", syscall.ETIMEDOUT
		}
		return "success", nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected result 'success', got: %s", result)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_FailureAfterMaxRetries(t *testing.T) {
	attempts := 0

	_, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (int, error) {
		attempts++
		return 0, syscall.ETIMEDOUT
	}, "test operation")

	if err == nil {
		t.Fatal("Expected error after max retries, got nil")
	}
	if !errors.Is(err, syscall.ETIMEDOUT) {
		t.Errorf("Expected wrapped ETIMEDOUT, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts (max), got: %d", attempts)
	}
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0

	_, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (int, error) {
		attempts++
		return 0, syscall.ENOENT
	}, "test operation")

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for non-retryable), got: %d", attempts)
	}
}

func TestRetryWithBackoff_HonorsRetryAfter(t *testing.T) {
	attempts := 0
	cfg := testRetryConfig()
	cfg.MaxWait = time.Second

	start := time.Now()
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts == 1 {
			return &fakeStatusError{temporary: true, wait: 80 * time.Millisecond}
		}
		return nil
	}, "rate limited")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Expected to wait at least the Retry-After hint, waited %v", elapsed)
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testRetryConfig()
	cfg.InitialWait = time.Second
	cfg.MaxWait = time.Second

	attempts := 0
	err := Retry(ctx, cfg, func() error {
		attempts++
		cancel()
		return syscall.ETIMEDOUT
	}, "canceled")

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts=3, got: %d", cfg.MaxAttempts)
	}
	if cfg.InitialWait != 100*time.Millisecond {
		t.Errorf("Expected InitialWait=100ms, got: %v", cfg.InitialWait)
	}
	if cfg.MaxWait != 5*time.Second {
		t.Errorf("Expected MaxWait=5s, got: %v", cfg.MaxWait)
	}
}

func TestRemoteRetryConfig(t *testing.T) {
	cfg := RemoteRetryConfig(NopLogger())

	if cfg.MaxAttempts != 4 {
		t.Errorf("Expected MaxAttempts=4, got: %d", cfg.MaxAttempts)
	}
	if cfg.MaxWait != 30*time.Second {
		t.Errorf("Expected MaxWait=30s, got: %v", cfg.MaxWait)
	}
}
