package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	cases := []struct {
		retry int
		want  time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{9, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(tc.retry); got != tc.want {
			t.Fatalf("retry %d: expected %v, got %v", tc.retry, tc.want, got)
		}
	}
}

func TestWaitBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := waitBackoff(ctx, 5)
	if err == nil {
		t.Fatalf("expected context error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected immediate return on cancelled context, took %v", elapsed)
	}
}

func TestStrategyRetryBudgets(t *testing.T) {
	cases := []struct {
		category Category
		attempts int
	}{
		{CategoryAuthentication, 1},
		{CategoryFileFormat, 1},
		{CategoryParsing, 2},
		{CategoryTimeout, 3},
		{CategoryNetwork, 3},
		{CategoryValidation, 2},
	}
	for _, tc := range cases {
		strategy := strategyFor(tc.category)
		if strategy.RetryAttempts != tc.attempts {
			t.Fatalf("%s: expected %d retry attempts, got %d", tc.category, tc.attempts, strategy.RetryAttempts)
		}
		if strategy.Notice == "" {
			t.Fatalf("%s: expected a user-facing notice", tc.category)
		}
		if len(strategy.FallbackOptions) == 0 {
			t.Fatalf("%s: expected fallback options", tc.category)
		}
		if !strategy.PreserveVersions {
			t.Fatalf("%s: recovery must preserve document versions", tc.category)
		}
	}
}

func TestStrategyForUnknownCategory(t *testing.T) {
	strategy := strategyFor(Category("mystery"))
	if strategy.RetryAttempts != recoveryStrategies[CategoryNetwork].RetryAttempts {
		t.Fatalf("expected network strategy for unknown categories")
	}
}
