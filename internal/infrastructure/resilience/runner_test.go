package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testRunner(policy Policy) *Runner {
	return NewRunner(policy, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func retryAll(error) Verdict { return Verdict{Retry: true, CountFailure: true} }

func TestRunnerRetriesUntilSuccess(t *testing.T) {
	r := testRunner(Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	})

	calls := 0
	err := r.Do(context.Background(), "op", retryAll, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRunnerStopsOnNonRetryable(t *testing.T) {
	r := testRunner(Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond})
	permanent := errors.New("bad request")

	calls := 0
	err := r.Do(context.Background(), "op", func(error) Verdict {
		return Verdict{Retry: false, CountFailure: false}
	}, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error must not retry, got %d attempts", calls)
	}
}

func TestRunnerExhaustsAttempts(t *testing.T) {
	r := testRunner(Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	transient := errors.New("still down")

	calls := 0
	err := r.Do(context.Background(), "op", retryAll, func(context.Context) error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRunnerHonorsContextCancellation(t *testing.T) {
	r := testRunner(Policy{MaxAttempts: 10, InitialBackoff: 50 * time.Millisecond, MaxBackoff: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, "op", retryAll, func(context.Context) error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls > 2 {
		t.Fatalf("cancellation should stop retries early, got %d attempts", calls)
	}
}

func TestRunnerBreakerOpensAfterFailures(t *testing.T) {
	r := testRunner(Policy{
		MaxAttempts:         1,
		InitialBackoff:      time.Millisecond,
		BreakerEnabled:      true,
		BreakerMinRequests:  3,
		BreakerFailureRatio: 0.5,
		BreakerOpenFor:      time.Minute,
	})

	failing := func(context.Context) error { return errors.New("down") }
	for i := 0; i < 3; i++ {
		_ = r.Do(context.Background(), "op", retryAll, failing)
	}

	err := r.Do(context.Background(), "op", retryAll, failing)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}

func TestRunnerBreakersArePerOperation(t *testing.T) {
	r := testRunner(Policy{
		MaxAttempts:         1,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenFor:      time.Minute,
	})

	failing := func(context.Context) error { return errors.New("down") }
	for i := 0; i < 3; i++ {
		_ = r.Do(context.Background(), "broken-op", retryAll, failing)
	}
	if err := r.Do(context.Background(), "healthy-op", retryAll, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unrelated operation tripped: %v", err)
	}
}
