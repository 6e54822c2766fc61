package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
	"gonbs/internal/glm"
	"gonbs/internal/inference"
	"gonbs/internal/tfce"
)

// PipelineRequest describes one end-to-end network inference. The observed
// edge statistic is either given in Statistic or fitted from Design, whose
// response columns are the upper-triangle edges in row-major order. Bank
// holds the permutation replicates of that statistic, in the same order.
type PipelineRequest struct {
	Statistic []float64
	Design    *nbs.Design
	NumNodes  int
	Bank      nbs.PermutationBank
	Labels    []int
	Method    tfce.Method
	Params    *tfce.Params
	Alpha     float64
}

// PipelineResult carries every intermediate of the pipeline.
type PipelineResult struct {
	RunID    uuid.UUID                `json:"run_id"`
	NumNodes int                      `json:"num_nodes"`
	Method   tfce.Method              `json:"method"`
	Observed []float64                `json:"observed"`
	Enhanced []float64                `json:"enhanced"`
	PValues  []float64                `json:"pvalues"`
	Null     []float64                `json:"null"`
	Summary  inference.NullSummary    `json:"summary"`
	Network  *inference.NetworkResult `json:"network,omitempty"`
}

// RunPipeline fits or takes the observed statistic, enhances it and every
// permutation replicate with the same method, and derives max-statistic
// FWER p-values per edge. When labels are given it also runs
// network-constrained inference on the enhanced vectors.
func (s *Service) RunPipeline(ctx context.Context, req PipelineRequest) (*PipelineResult, error) {
	started := time.Now()

	observed := req.Statistic
	if req.Design != nil {
		if len(observed) > 0 {
			return nil, errors.InvalidParameter("give either a statistic or a design, not both")
		}
		stats, err := glm.Fit(*req.Design)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fit observed statistic")
		}
		observed = stats
	}
	if len(observed) == 0 {
		return nil, errors.InvalidParameter("observed statistic is empty")
	}

	n := req.NumNodes
	if n == 0 {
		n = nbs.NodesForEdges(len(observed))
	}
	if n < 2 || nbs.NumEdges(n) != len(observed) {
		return nil, errors.ShapeMismatch("%d edge statistics do not fill the upper triangle of a graph", len(observed))
	}
	if req.Bank.K() == 0 {
		return nil, errors.InvalidParameter("permutation bank is empty")
	}
	if err := req.Bank.Validate(len(observed)); err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = s.settings.Method
	}
	enh, err := tfce.NewEnhancer(method, s.params(req.Params))
	if err != nil {
		return nil, err
	}

	enhanced, err := enhanceEdges(enh, observed, n)
	if err != nil {
		return nil, err
	}

	null := nbs.PermutationBank{Replicates: make([][]float64, req.Bank.K())}
	err = inference.ForEachReplicate(ctx, req.Bank.K(), s.settings.Options, func(_ context.Context, p int) error {
		out, err := enhanceEdges(enh, req.Bank.Replicates[p], n)
		if err != nil {
			return errors.Wrapf(err, "permutation %d", p)
		}
		null.Replicates[p] = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	pvalues, maxNull, err := inference.MaxStatisticPValues(ctx, enhanced, null, s.settings.Options)
	if err != nil {
		return nil, err
	}
	summary, err := inference.Summarize(maxNull)
	if err != nil {
		return nil, err
	}

	res := &PipelineResult{
		NumNodes: n,
		Method:   enh.Method(),
		Observed: observed,
		Enhanced: enhanced,
		PValues:  pvalues,
		Null:     maxNull,
		Summary:  summary,
	}

	if len(req.Labels) > 0 {
		alpha := req.Alpha
		if alpha == 0 {
			alpha = s.settings.Alpha
		}
		network, err := inference.NetworkPValues(ctx, enhanced, null, req.Labels, alpha, s.settings.Options)
		if err != nil {
			return nil, err
		}
		res.Network = &network
	}

	s.logger.Debug("pipeline enhanced permutations", "permutations", req.Bank.K(), "nodes", n, "method", enh.Method())
	params := map[string]interface{}{
		"nodes":        n,
		"method":       enh.Method(),
		"params":       s.params(req.Params),
		"permutations": req.Bank.K(),
		"fitted":       req.Design != nil,
	}
	res.RunID = s.record(ctx, nbs.RunPipeline, params, res, started)
	return res, nil
}

// enhanceEdges lifts an upper-triangle vector into a matrix, enhances it and
// flattens it back. Negative statistics are not edges.
func enhanceEdges(enh tfce.Enhancer, edges []float64, n int) ([]float64, error) {
	m, err := nbs.FromUpperTriangle(edges, n)
	if err != nil {
		return nil, err
	}
	for k, v := range m.Data {
		if v < 0 {
			m.Data[k] = 0
		}
	}
	out, err := enh.Enhance(m)
	if err != nil {
		return nil, err
	}
	return out.UpperTriangle(), nil
}
