package ports

import (
	"context"

	"github.com/google/uuid"

	"gonbs/domain/nbs"
)

// RunRepository defines the interface for persisted computation records
type RunRepository interface {
	// SaveRun stores a finished run
	SaveRun(ctx context.Context, run *nbs.Run) error

	// GetRun retrieves a run by its ID, returning a NOT_FOUND error when absent
	GetRun(ctx context.Context, id uuid.UUID) (*nbs.Run, error)

	// ListRuns returns the most recent runs, optionally filtered by kind and limited
	ListRuns(ctx context.Context, kind nbs.RunKind, limit int) ([]*nbs.Run, error)
}
