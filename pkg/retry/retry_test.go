package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
)

func fastBackoff(maxRetries int) *ExponentialBackoff {
	return NewExponentialBackoff(ExponentialBackoffConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.1,
		MaxRetries:          maxRetries,
	})
}

func TestRetryLogic(t *testing.T) {
	attempts := 0
	err := fastBackoff(3).Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("simulated failure")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected retry to succeed eventually, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := fastBackoff(2).Do(context.Background(), func() error {
		attempts++
		return errors.New("always fails")
	})

	if err == nil {
		t.Error("Expected the last error to be returned")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryHonoursShouldRetry(t *testing.T) {
	attempts := 0
	eb := fastBackoff(5).WithShouldRetry(errs.IsRetryable)

	err := eb.Do(context.Background(), func() error {
		attempts++
		return errs.APIError(422, "unprocessable")
	})

	if !errs.Is(err, errs.ErrTypeAPI) {
		t.Errorf("Expected API error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected a single attempt for a non-retryable error, got %d", attempts)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eb := NewExponentialBackoff(ExponentialBackoffConfig{
		InitialInterval: time.Hour,
		Multiplier:      2,
		MaxRetries:      3,
	})
	err := eb.Do(ctx, func() error { return errors.New("fail") })

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Second)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	if cb.GetState() != StateClosed {
		t.Errorf("Expected circuit breaker to be closed initially")
	}

	failureFunc := func() error { return errors.New("simulated failure") }

	if err := cb.Do(context.Background(), failureFunc); err == nil {
		t.Error("Expected error from failure function")
	}
	if cb.GetState() != StateClosed {
		t.Error("Expected circuit breaker to remain closed after first failure")
	}

	if err := cb.Do(context.Background(), failureFunc); err == nil {
		t.Error("Expected error from failure function")
	}
	if cb.GetState() != StateOpen {
		t.Error("Expected circuit breaker to be open after max failures")
	}

	err := cb.Do(context.Background(), func() error { return nil })
	if !errs.Is(err, errs.ErrTypeCircuitOpen) {
		t.Errorf("Expected circuit breaker open error, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if err := cb.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("Expected half-open trial call to pass, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected breaker to close after a successful trial, got %s", cb.GetState())
	}
}

func TestCircuitBreakerIgnoresUncountedErrors(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute).CountOnly(errs.IsRetryable)

	for i := 0; i < 3; i++ {
		err := cb.Do(context.Background(), func() error { return errs.APIError(401, "bad credentials") })
		if !errs.Is(err, errs.ErrTypeAPI) {
			t.Fatalf("Expected API error to pass through, got %v", err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected breaker to stay closed, got %s", cb.GetState())
	}
}
