package pipeline

import (
	"context"
	"time"
)

// Backoff constants for automatic stage retries. backoffBase is a variable
// so tests can shrink the delays.
var (
	backoffBase = 1 * time.Second
	backoffCap  = 10 * time.Second
)

// RecoveryStrategy is the retry budget and user-facing fallback for one
// error category.
type RecoveryStrategy struct {
	RetryAttempts    int
	Notice           string
	FallbackOptions  []string
	PreserveVersions bool
}

var recoveryStrategies = map[Category]RecoveryStrategy{
	CategoryAuthentication: {
		RetryAttempts:    1,
		Notice:           "The analysis provider rejected our credentials.",
		FallbackOptions:  []string{"check provider configuration", "retry later"},
		PreserveVersions: true,
	},
	CategoryFileFormat: {
		RetryAttempts:    1,
		Notice:           "The uploaded file is in a format we could not read.",
		FallbackOptions:  []string{"upload a PDF or DOCX export", "paste the resume as plain text"},
		PreserveVersions: true,
	},
	CategoryParsing: {
		RetryAttempts:    2,
		Notice:           "We could not extract usable content from the document.",
		FallbackOptions:  []string{"try a cleaner export of the file", "paste the resume as plain text"},
		PreserveVersions: true,
	},
	CategoryTimeout: {
		RetryAttempts:    3,
		Notice:           "Analysis is taking longer than expected.",
		FallbackOptions:  []string{"retry the step", "shorten the document and retry"},
		PreserveVersions: true,
	},
	CategoryNetwork: {
		RetryAttempts:    3,
		Notice:           "A network problem interrupted this step.",
		FallbackOptions:  []string{"retry the step", "check connectivity and retry"},
		PreserveVersions: true,
	},
	CategoryValidation: {
		RetryAttempts:    2,
		Notice:           "Generated content did not pass validation checks.",
		FallbackOptions:  []string{"retry the step", "edit the section manually"},
		PreserveVersions: true,
	},
}

// strategyFor returns the recovery strategy for a category, defaulting to
// the network strategy for safety.
func strategyFor(category Category) RecoveryStrategy {
	if s, ok := recoveryStrategies[category]; ok {
		return s
	}
	return recoveryStrategies[CategoryNetwork]
}

// backoffDelay returns the wait before retry n (1-based): base doubling per
// attempt, capped.
func backoffDelay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := backoffBase
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= backoffCap {
			return backoffCap
		}
	}
	if delay > backoffCap {
		return backoffCap
	}
	return delay
}

// waitBackoff sleeps for the retry delay, returning early on context
// cancellation.
func waitBackoff(ctx context.Context, retry int) error {
	timer := time.NewTimer(backoffDelay(retry))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
