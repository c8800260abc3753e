package optimizations

import (
	"context"
	"time"
)

// Repo defines persistence operations for optimization runs.
type Repo interface {
	Create(ctx context.Context, opt Optimization) error
	// GetByID loads a run without user scoping; the worker path uses it.
	GetByID(ctx context.Context, optimizationID string) (Optimization, error)
	GetForUser(ctx context.Context, userID, optimizationID string) (Optimization, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Optimization, error)
	MarkProcessing(ctx context.Context, optimizationID string, startedAt time.Time) error
	Complete(ctx context.Context, optimizationID string, report map[string]any, resultKey string, completedAt time.Time) error
	Fail(ctx context.Context, optimizationID, errorMessage string, completedAt time.Time) error
}
