// Package memory holds in-process repositories used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
	"gonbs/ports"
)

// RunRepository keeps runs in a map guarded by a RWMutex.
type RunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*nbs.Run
}

// NewRunRepository returns an empty repository.
func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[uuid.UUID]*nbs.Run)}
}

var _ ports.RunRepository = (*RunRepository)(nil)

func (r *RunRepository) SaveRun(ctx context.Context, run *nbs.Run) error {
	if run == nil {
		return errors.InvalidInput("run is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id uuid.UUID) (*nbs.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, errors.NotFound("run " + id.String())
	}
	cp := *run
	return &cp, nil
}

func (r *RunRepository) ListRuns(ctx context.Context, kind nbs.RunKind, limit int) ([]*nbs.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*nbs.Run, 0, len(r.runs))
	for _, run := range r.runs {
		if kind != "" && run.Kind != kind {
			continue
		}
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
