package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gonbs/domain/nbs"
	"gonbs/internal/cluster"
	"gonbs/internal/errors"
	"gonbs/internal/glm"
	"gonbs/internal/inference"
	"gonbs/internal/logging"
	"gonbs/internal/tfce"
	"gonbs/ports"
)

// Settings are the defaults applied when a request leaves a field unset.
type Settings struct {
	Params  tfce.Params
	Method  tfce.Method
	Alpha   float64
	Options inference.Options
}

// DefaultSettings mirrors the package defaults of the engines.
func DefaultSettings() Settings {
	return Settings{
		Params: tfce.DefaultParams(),
		Method: tfce.MethodDense,
		Alpha:  0.05,
	}
}

// Service runs the statistical engines and records every call as a Run.
type Service struct {
	runs     ports.RunRepository
	logger   logging.Logger
	settings Settings
}

// NewService creates a service. runs may be nil, in which case nothing is
// persisted and results carry a nil run ID.
func NewService(runs ports.RunRepository, logger logging.Logger, settings Settings) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{runs: runs, logger: logger, settings: settings}
}

// Settings returns the service defaults.
func (s *Service) Settings() Settings {
	return s.settings
}

// record persists a run. Storage failures are logged, not returned: the
// computation already succeeded and its result is still delivered.
func (s *Service) record(ctx context.Context, kind nbs.RunKind, params, result interface{}, started time.Time) uuid.UUID {
	took := time.Since(started)
	s.logger.Info("computation finished", "kind", kind, "duration", took)
	if s.runs == nil {
		return uuid.Nil
	}
	run, err := nbs.NewRun(kind, params, result, took)
	if err != nil {
		s.logger.Error("failed to encode run", "kind", kind, "error", err)
		return uuid.Nil
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		s.logger.Error("failed to save run", "kind", kind, "run_id", run.ID, "error", err)
		return uuid.Nil
	}
	return run.ID
}

// GLMResult is the fitted statistic with parametric p-values.
type GLMResult struct {
	RunID     uuid.UUID    `json:"run_id"`
	Kind      nbs.TestKind `json:"kind"`
	Statistic []float64    `json:"statistic"`
	PValues   []float64    `json:"pvalues"`
	DF1       int          `json:"df1"`
	DF2       int          `json:"df2"`
}

// FitGLM fits every response column of d against its design.
func (s *Service) FitGLM(ctx context.Context, d nbs.Design) (*GLMResult, error) {
	started := time.Now()
	res, err := glm.Estimate(d)
	if err != nil {
		return nil, err
	}
	out := &GLMResult{
		Kind:      res.Kind,
		Statistic: res.Statistic,
		PValues:   res.PValues(),
		DF1:       res.DF1,
		DF2:       res.DF2,
	}
	nObs, nPred := d.X.Dims()
	params := map[string]interface{}{"kind": d.Kind, "observations": nObs, "predictors": nPred, "nuisance": d.Nuisance}
	out.RunID = s.record(ctx, nbs.RunGLM, params, out, started)
	return out, nil
}

// EnhanceResult is a cluster-enhanced matrix.
type EnhanceResult struct {
	RunID  uuid.UUID   `json:"run_id"`
	Method tfce.Method `json:"method"`
	Matrix nbs.Matrix  `json:"matrix"`
}

// Enhance applies the named enhancement to m. A nil p uses the defaults and
// an empty method uses the configured one.
func (s *Service) Enhance(ctx context.Context, m nbs.Matrix, method tfce.Method, p *tfce.Params) (*EnhanceResult, error) {
	started := time.Now()
	params := s.params(p)
	if method == "" {
		method = s.settings.Method
	}
	enh, err := tfce.NewEnhancer(method, params)
	if err != nil {
		return nil, err
	}
	out, err := enh.Enhance(m)
	if err != nil {
		return nil, err
	}
	res := &EnhanceResult{Method: enh.Method(), Matrix: out}
	res.RunID = s.record(ctx, nbs.RunTFCE, map[string]interface{}{"method": method, "params": params, "nodes": m.N}, res, started)
	return res, nil
}

// NodeScores is a per-node result vector.
type NodeScores struct {
	RunID  uuid.UUID `json:"run_id"`
	Scores []float64 `json:"scores"`
}

// SparseTFCE runs the coordinate-list sweep.
func (s *Service) SparseTFCE(ctx context.Context, el nbs.EdgeList, numNodes int, p *tfce.Params) (*NodeScores, error) {
	started := time.Now()
	params := s.params(p)
	scores, err := tfce.Sparse(el, numNodes, params)
	if err != nil {
		return nil, err
	}
	res := &NodeScores{Scores: scores}
	res.RunID = s.record(ctx, nbs.RunTFCE, map[string]interface{}{"method": "sparse", "params": params, "nodes": numNodes, "edges": el.Len()}, res, started)
	return res, nil
}

// ReferenceAdjacency sweeps element values over a neighbor list.
func (s *Service) ReferenceAdjacency(ctx context.Context, values []float64, neighbors [][]int, p *tfce.Params) (*NodeScores, error) {
	started := time.Now()
	params := s.params(p)
	scores, err := tfce.ReferenceAdjacency(values, neighbors, params)
	if err != nil {
		return nil, err
	}
	res := &NodeScores{Scores: scores}
	res.RunID = s.record(ctx, nbs.RunTFCE, map[string]interface{}{"method": "reference-adjacency", "params": params, "elements": len(values)}, res, started)
	return res, nil
}

// ClusterSizes is the output of the sparse cluster indexer.
type ClusterSizes struct {
	RunID uuid.UUID `json:"run_id"`
	Sizes []int     `json:"sizes"`
}

// SparseClusters assigns every node the node count of its component.
func (s *Service) SparseClusters(ctx context.Context, i, j []int, numNodes int) (*ClusterSizes, error) {
	started := time.Now()
	sizes, err := cluster.SparseSizes(i, j, numNodes)
	if err != nil {
		return nil, err
	}
	res := &ClusterSizes{Sizes: sizes}
	res.RunID = s.record(ctx, nbs.RunClusters, map[string]interface{}{"nodes": numNodes, "edges": len(i)}, res, started)
	return res, nil
}

// NetworkResult wraps network-constrained inference with its run ID.
type NetworkResult struct {
	RunID uuid.UUID `json:"run_id"`
	inference.NetworkResult
}

// NetworkPValues runs network-constrained inference. A zero alpha uses the default.
func (s *Service) NetworkPValues(ctx context.Context, stats []float64, bank nbs.PermutationBank, labels []int, alpha float64) (*NetworkResult, error) {
	started := time.Now()
	if alpha == 0 {
		alpha = s.settings.Alpha
	}
	res, err := inference.NetworkPValues(ctx, stats, bank, labels, alpha, s.settings.Options)
	if err != nil {
		return nil, err
	}
	out := &NetworkResult{NetworkResult: res}
	out.RunID = s.record(ctx, nbs.RunNetwork, map[string]interface{}{"edges": len(stats), "permutations": bank.K(), "alpha": alpha}, out, started)
	return out, nil
}

// ComponentResult wraps max-component inference with its run ID.
type ComponentResult struct {
	RunID uuid.UUID `json:"run_id"`
	inference.ComponentResult
}

// MaxComponentPValues runs cluster-size inference on binary adjacency matrices.
func (s *Service) MaxComponentPValues(ctx context.Context, observed nbs.Matrix, bank []nbs.Matrix) (*ComponentResult, error) {
	started := time.Now()
	res, err := inference.MaxComponentPValues(ctx, observed, bank, s.settings.Options)
	if err != nil {
		return nil, err
	}
	out := &ComponentResult{ComponentResult: res}
	out.RunID = s.record(ctx, nbs.RunMaxComponent, map[string]interface{}{"nodes": observed.N, "permutations": len(bank)}, out, started)
	return out, nil
}

// GetRun loads a persisted run.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*nbs.Run, error) {
	if s.runs == nil {
		return nil, errors.NotFound("run " + id.String())
	}
	return s.runs.GetRun(ctx, id)
}

// ListRuns lists persisted runs, newest first.
func (s *Service) ListRuns(ctx context.Context, kind nbs.RunKind, limit int) ([]*nbs.Run, error) {
	if s.runs == nil {
		return []*nbs.Run{}, nil
	}
	return s.runs.ListRuns(ctx, kind, limit)
}

func (s *Service) params(p *tfce.Params) tfce.Params {
	if p == nil {
		return s.settings.Params
	}
	return *p
}
