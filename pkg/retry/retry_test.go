package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var (
	errTestError    = errors.New("test error")
	errNonRetryable = errors.New("non-retryable error")
	errConflict     = errors.New("transaction conflict")
)

func testConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testConfig(), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errTestError
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetry_MaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testConfig(), func() error {
		attempts++
		return errTestError
	})

	if !errors.Is(err, errTestError) {
		t.Errorf("Expected wrapped test error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetry_NonRetryableWrappedError(t *testing.T) {
	cfg := testConfig()
	cfg.NonRetryableErrors = []error{errNonRetryable}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return fmt.Errorf("assign role: %w", errNonRetryable)
	})

	if !errors.Is(err, errNonRetryable) {
		t.Errorf("Expected non-retryable error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestOnce_RetriesOnlyListedErrors(t *testing.T) {
	cfg := Once(time.Millisecond, errConflict)

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errConflict
	})
	if !errors.Is(err, errConflict) || attempts != 2 {
		t.Errorf("Expected 2 attempts ending in conflict, got %d attempts and %v", attempts, err)
	}

	attempts = 0
	err = Retry(context.Background(), cfg, func() error {
		attempts++
		return errTestError
	})
	if err != errTestError || attempts != 1 {
		t.Errorf("Expected unlisted error to be returned as is after 1 attempt, got %d and %v", attempts, err)
	}
}

func TestRetryWithResult(t *testing.T) {
	attempts := 0
	result, err := RetryWithResult(context.Background(), testConfig(), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errTestError
		}
		return "room-42", nil
	})

	if err != nil || result != "room-42" {
		t.Errorf("Expected room-42, got %q, %v", result, err)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, testConfig(), func() error { return errTestError })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestRetry_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errTestError
	})
	if err != errTestError || attempts != 1 {
		t.Errorf("Expected single attempt returning raw error, got %d and %v", attempts, err)
	}
}

func TestCalculateDelay_CappedAtMax(t *testing.T) {
	cfg := Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 30 * time.Millisecond, Multiplier: 2}

	if d := calculateDelay(cfg, 0); d != 10*time.Millisecond {
		t.Errorf("attempt 0 delay = %v", d)
	}
	if d := calculateDelay(cfg, 5); d != 30*time.Millisecond {
		t.Errorf("attempt 5 delay = %v, want cap", d)
	}
}
