package optimizations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-optimizer/internal/pipeline"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const optimizationColumns = `id, user_id, document_id, target_role, requirements, section_inputs, project_policy, status, report, result_key, error_message, created_at, started_at, completed_at`

// Create inserts a new run.
func (r *PGRepo) Create(ctx context.Context, opt Optimization) error {
	const query = `
INSERT INTO optimizations (
    id, user_id, document_id, target_role, requirements, section_inputs,
    project_policy, status, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	sections, err := marshalNullableJSONB(opt.SectionInputs)
	if err != nil {
		return fmt.Errorf("marshal section inputs: %w", err)
	}
	policy := opt.ProjectPolicy
	if policy == "" {
		policy = PolicyApplyAll
	}

	_, err = r.DB.ExecContext(ctx, query,
		opt.ID,
		opt.UserID,
		opt.DocumentID,
		opt.TargetRole,
		opt.Requirements,
		sections,
		policy,
		opt.Status,
		opt.CreatedAt,
	)
	return err
}

// GetByID loads a run by ID, regardless of owner.
func (r *PGRepo) GetByID(ctx context.Context, optimizationID string) (Optimization, error) {
	const query = `
SELECT ` + optimizationColumns + `
FROM optimizations
WHERE id = $1
LIMIT 1`
	return scanOptimization(r.DB.QueryRowContext(ctx, query, optimizationID))
}

// GetForUser loads a run scoped to its owner.
func (r *PGRepo) GetForUser(ctx context.Context, userID, optimizationID string) (Optimization, error) {
	const query = `
SELECT ` + optimizationColumns + `
FROM optimizations
WHERE user_id = $1 AND id = $2
LIMIT 1`
	return scanOptimization(r.DB.QueryRowContext(ctx, query, userID, optimizationID))
}

// ListByUser returns a user's runs, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Optimization, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + optimizationColumns + `
FROM optimizations
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Optimization
	for rows.Next() {
		opt, err := scanOptimizationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, opt)
	}
	return out, rows.Err()
}

// MarkProcessing transitions a run into processing. Only queued rows move;
// the guard makes redelivered queue messages harmless.
func (r *PGRepo) MarkProcessing(ctx context.Context, optimizationID string, startedAt time.Time) error {
	const query = `
UPDATE optimizations
SET status = $1, started_at = $2
WHERE id = $3 AND status = $4`
	_, err := r.DB.ExecContext(ctx, query, StatusProcessing, startedAt, optimizationID, StatusQueued)
	return err
}

// Complete records a successful run with its report and artifact key.
func (r *PGRepo) Complete(ctx context.Context, optimizationID string, report map[string]any, resultKey string, completedAt time.Time) error {
	payload, err := marshalNullableJSONB(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	const query = `
UPDATE optimizations
SET status = $1, report = $2, result_key = $3, error_message = NULL, completed_at = $4
WHERE id = $5`
	_, err = r.DB.ExecContext(ctx, query, StatusCompleted, payload, nullString(resultKey), completedAt, optimizationID)
	return err
}

// Fail records a failed run.
func (r *PGRepo) Fail(ctx context.Context, optimizationID, errorMessage string, completedAt time.Time) error {
	const query = `
UPDATE optimizations
SET status = $1, error_message = $2, completed_at = $3
WHERE id = $4`
	_, err := r.DB.ExecContext(ctx, query, StatusFailed, errorMessage, completedAt, optimizationID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptimization(row rowScanner) (Optimization, error) {
	opt, err := scanOptimizationRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Optimization{}, ErrNotFound
		}
		return Optimization{}, err
	}
	return opt, nil
}

func scanOptimizationRow(row rowScanner) (Optimization, error) {
	var opt Optimization
	var sections, report []byte
	var resultKey, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	if err := row.Scan(
		&opt.ID,
		&opt.UserID,
		&opt.DocumentID,
		&opt.TargetRole,
		&opt.Requirements,
		&sections,
		&opt.ProjectPolicy,
		&opt.Status,
		&report,
		&resultKey,
		&errorMessage,
		&opt.CreatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return Optimization{}, err
	}

	if len(sections) > 0 {
		var in pipeline.SectionsInput
		if err := json.Unmarshal(sections, &in); err != nil {
			return Optimization{}, fmt.Errorf("unmarshal section inputs: %w", err)
		}
		opt.SectionInputs = &in
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &opt.Report); err != nil {
			return Optimization{}, fmt.Errorf("unmarshal report: %w", err)
		}
	}
	opt.ResultKey = resultKey.String
	opt.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		opt.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		opt.CompletedAt = &completedAt.Time
	}
	return opt, nil
}

// marshalNullableJSONB encodes a value for a JSONB column, mapping nil to
// SQL NULL.
func marshalNullableJSONB(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *pipeline.SectionsInput:
		if v == nil {
			return nil, nil
		}
	case map[string]any:
		if v == nil {
			return nil, nil
		}
	}
	return json.Marshal(value)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
