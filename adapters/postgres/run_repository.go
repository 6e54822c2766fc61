package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
	"gonbs/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// SaveRun inserts a run record
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, run *nbs.Run) error {
	// JSONB columns take the documents as text; pq would send []byte as bytea.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO nbs_runs (id, kind, params, result, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, string(run.Kind), string(run.Params), string(run.Result), run.DurationMS, run.CreatedAt)
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to save run"))
	}
	return nil
}

// GetRun retrieves a run by its ID
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id uuid.UUID) (*nbs.Run, error) {
	var run nbs.Run
	err := r.db.GetContext(ctx, &run, `
		SELECT id, kind, params, result, duration_ms, created_at
		FROM nbs_runs
		WHERE id = $1
	`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run " + id.String())
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to load run"))
	}
	return &run, nil
}

// ListRuns returns runs newest first, optionally filtered by kind and limited
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, kind nbs.RunKind, limit int) ([]*nbs.Run, error) {
	query := `
		SELECT id, kind, params, result, duration_ms, created_at
		FROM nbs_runs
		WHERE ($1::text = '' OR kind = $1::text)
		ORDER BY created_at DESC
	`

	args := []interface{}{string(kind)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	runs := []*nbs.Run{}
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to list runs"))
	}
	return runs, nil
}
