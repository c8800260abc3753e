package optimizations

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores optimization runs in memory and is safe for concurrent
// use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Optimization
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Optimization)}
}

// Create stores a run.
func (r *MemoryRepo) Create(ctx context.Context, opt Optimization) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[opt.ID] = opt
	return nil
}

// GetByID returns a run by its ID, regardless of owner.
func (r *MemoryRepo) GetByID(ctx context.Context, optimizationID string) (Optimization, error) {
	if err := ctx.Err(); err != nil {
		return Optimization{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	opt, ok := r.byID[optimizationID]
	if !ok {
		return Optimization{}, ErrNotFound
	}
	return opt, nil
}

// GetForUser returns a run scoped to its owner.
func (r *MemoryRepo) GetForUser(ctx context.Context, userID, optimizationID string) (Optimization, error) {
	opt, err := r.GetByID(ctx, optimizationID)
	if err != nil {
		return Optimization{}, err
	}
	if opt.UserID != userID {
		return Optimization{}, ErrNotFound
	}
	return opt, nil
}

// ListByUser returns a user's runs, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Optimization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var all []Optimization
	for _, opt := range r.byID {
		if opt.UserID == userID {
			all = append(all, opt)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// MarkProcessing transitions a run into processing.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, optimizationID string, startedAt time.Time) error {
	return r.update(ctx, optimizationID, func(opt *Optimization) {
		opt.Status = StatusProcessing
		opt.StartedAt = &startedAt
	})
}

// Complete records a successful run.
func (r *MemoryRepo) Complete(ctx context.Context, optimizationID string, report map[string]any, resultKey string, completedAt time.Time) error {
	return r.update(ctx, optimizationID, func(opt *Optimization) {
		opt.Status = StatusCompleted
		opt.Report = report
		opt.ResultKey = resultKey
		opt.CompletedAt = &completedAt
	})
}

// Fail records a failed run.
func (r *MemoryRepo) Fail(ctx context.Context, optimizationID, errorMessage string, completedAt time.Time) error {
	return r.update(ctx, optimizationID, func(opt *Optimization) {
		opt.Status = StatusFailed
		opt.ErrorMessage = errorMessage
		opt.CompletedAt = &completedAt
	})
}

func (r *MemoryRepo) update(ctx context.Context, optimizationID string, apply func(*Optimization)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	opt, ok := r.byID[optimizationID]
	if !ok {
		return ErrNotFound
	}
	apply(&opt)
	r.byID[optimizationID] = opt
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
