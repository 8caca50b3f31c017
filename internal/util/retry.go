package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int            // Maximum number of attempts, including the first
	InitialWait time.Duration  // Initial wait duration (doubled each retry)
	MaxWait     time.Duration  // Maximum wait duration between retries
	Logger      zerolog.Logger // Receives retry diagnostics
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Logger:      zerolog.Nop(),
	}
}

// RemoteRetryConfig returns retry config tuned for the streaming service API,
// which answers bursts with 429 and a Retry-After hint.
func RemoteRetryConfig(logger zerolog.Logger) *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 4,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     30 * time.Second,
		Logger:      logger,
	}
}

// temporary is implemented by errors that know whether a retry can succeed.
type temporary interface {
	Temporary() bool
}

// retryAfter is implemented by errors carrying a server-provided wait hint.
type retryAfter interface {
	RetryAfter() time.Duration
}

// IsRetryableError checks if an error is worth retrying
// Returns true for transient network errors and errors that declare themselves temporary
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tmp temporary
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN,
			syscall.ETIMEDOUT,
			syscall.ECONNRESET,
			syscall.ECONNABORTED,
			syscall.ECONNREFUSED,
			syscall.ENETDOWN,
			syscall.ENETUNREACH,
			syscall.EHOSTDOWN,
			syscall.EHOSTUNREACH:
			return true
		}
	}

	// Check error messages for common transient patterns
	errMsg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"broken pipe",
		"no route to host",
		"network is unreachable",
		"temporary failure",
		"unexpected eof",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// RetryWithBackoff executes a function with exponential backoff retry logic
// Returns the result of the function or the final error after all retries exhausted
func RetryWithBackoff[T any](ctx context.Context, cfg *RetryConfig, operation func() (T, error), operationName string) (T, error) {
	var result T
	var err error

	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	log := cfg.Logger

	waitDuration := cfg.InitialWait

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err = operation()
		if err == nil {
			if attempt > 1 {
				log.Debug().Str("op", operationName).Int("attempt", attempt).Msg("retry succeeded")
			}
			return result, nil
		}

		if !IsRetryableError(err) {
			return result, err
		}

		if attempt == cfg.MaxAttempts {
			log.Warn().Err(err).Str("op", operationName).Int("attempts", attempt).Msg("retries exhausted")
			return result, fmt.Errorf("max retries exceeded (%d attempts): %w", cfg.MaxAttempts, err)
		}

		wait := waitDuration
		var hint retryAfter
		if errors.As(err, &hint) && hint.RetryAfter() > wait {
			wait = hint.RetryAfter()
		}
		if wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}

		log.Debug().Err(err).
			Str("op", operationName).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}

		waitDuration *= 2
		if waitDuration > cfg.MaxWait {
			waitDuration = cfg.MaxWait
		}
	}

	return result, fmt.Errorf("unexpected retry loop exit: %w", err)
}

// Retry executes a function with retry logic (no return value)
func Retry(ctx context.Context, cfg *RetryConfig, operation func() error, operationName string) error {
	_, err := RetryWithBackoff(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, operation()
	}, operationName)
	return err
}
