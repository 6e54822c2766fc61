package api

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
	"gonbs/internal/tfce"
)

// paramsDTO overrides individual sweep parameters; unset fields keep the
// server defaults.
type paramsDTO struct {
	DH     *float64  `json:"dh,omitempty"`
	H      *float64  `json:"h,omitempty"`
	E      *float64  `json:"e,omitempty"`
	Extent string    `json:"extent,omitempty"` // "edges" or "nodes"
	Clamp  *clampDTO `json:"clamp,omitempty"`
}

type clampDTO struct {
	Enabled     bool    `json:"enabled"`
	Ceiling     float64 `json:"ceiling"`
	Replacement float64 `json:"replacement"`
}

func (p paramsDTO) resolve(defaults tfce.Params) (*tfce.Params, error) {
	out := defaults
	if p.DH != nil {
		out.DH = *p.DH
	}
	if p.H != nil {
		out.H = *p.H
	}
	if p.E != nil {
		out.E = *p.E
	}
	switch p.Extent {
	case "":
	case "edges":
		out.Extent = tfce.ExtentEdges
	case "nodes":
		out.Extent = tfce.ExtentNodes
	default:
		return nil, errors.InvalidParameter("extent must be \"edges\" or \"nodes\", got %q", p.Extent)
	}
	if p.Clamp != nil {
		out.Clamp = tfce.ClampPolicy{Enabled: p.Clamp.Enabled, Ceiling: p.Clamp.Ceiling, Replacement: p.Clamp.Replacement}
	}
	return &out, nil
}

type glmRequest struct {
	X        [][]float64 `json:"x" binding:"required"`
	Y        [][]float64 `json:"y" binding:"required"`
	Contrast []float64   `json:"contrast" binding:"required"`
	Test     string      `json:"test" binding:"required"`
	Nuisance []int       `json:"nuisance,omitempty"` // 1-based predictor columns
}

func (g glmRequest) design() (nbs.Design, error) {
	x, err := denseFromRows("x", g.X)
	if err != nil {
		return nbs.Design{}, err
	}
	y, err := denseFromRows("y", g.Y)
	if err != nil {
		return nbs.Design{}, err
	}
	nuisance, err := zeroBased("nuisance", g.Nuisance)
	if err != nil {
		return nbs.Design{}, err
	}
	return nbs.Design{X: x, Y: y, Contrast: g.Contrast, Kind: nbs.TestKind(g.Test), Nuisance: nuisance}, nil
}

type matrixRequest struct {
	Matrix [][]float64 `json:"matrix" binding:"required"`
	paramsDTO
}

type matrixResponse struct {
	RunID  string      `json:"run_id"`
	Method tfce.Method `json:"method"`
	Matrix [][]float64 `json:"matrix"`
}

type sparseTFCERequest struct {
	I        []int     `json:"i" binding:"required"` // 1-based
	J        []int     `json:"j" binding:"required"` // 1-based
	V        []float64 `json:"v" binding:"required"`
	NumNodes int       `json:"num_nodes"`
	paramsDTO
}

type referenceAdjacencyRequest struct {
	Values    []float64 `json:"values" binding:"required"`
	Neighbors [][]int   `json:"neighbors" binding:"required"` // 1-based
	paramsDTO
}

type sparseClustersRequest struct {
	I        []int `json:"i" binding:"required"` // 1-based
	J        []int `json:"j" binding:"required"` // 1-based
	NumNodes int   `json:"num_nodes"`
}

type networkRequest struct {
	Stats        []float64   `json:"stats" binding:"required"`
	Permutations [][]float64 `json:"permutations" binding:"required"` // K replicates, edge order as stats
	Labels       []int       `json:"labels" binding:"required"`
	Alpha        float64     `json:"alpha,omitempty"`
}

type maxComponentRequest struct {
	Observed     [][]float64   `json:"observed" binding:"required"`
	Permutations [][][]float64 `json:"permutations" binding:"required"`
}

type maxComponentResponse struct {
	RunID     string      `json:"run_id"`
	PValues   [][]float64 `json:"pvalues"`
	Statistic [][]float64 `json:"statistic"`
	Null      []float64   `json:"null"`
	Summary   interface{} `json:"summary"`
}

type pipelineRequest struct {
	Statistic    []float64   `json:"statistic,omitempty"`
	Design       *glmRequest `json:"design,omitempty"`
	NumNodes     int         `json:"num_nodes,omitempty"`
	Permutations [][]float64 `json:"permutations" binding:"required"`
	Labels       []int       `json:"labels,omitempty"`
	Method       string      `json:"method,omitempty"`
	Alpha        float64     `json:"alpha,omitempty"`
	paramsDTO
}

// zeroBased converts host 1-based indices, rejecting anything below 1.
func zeroBased(field string, idx []int) ([]int, error) {
	if idx == nil {
		return nil, nil
	}
	out := make([]int, len(idx))
	for k, v := range idx {
		if v < 1 {
			return nil, errors.InvalidParameter("%s[%d] = %d: indices are 1-based", field, k, v)
		}
		out[k] = v - 1
	}
	return out, nil
}

func denseFromRows(field string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.ShapeMismatch("%s must be a non-empty matrix", field)
	}
	cols := len(rows[0])
	d := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.ShapeMismatch("%s row %d has %d columns, expected %d", field, i, len(row), cols)
		}
		d.SetRow(i, row)
	}
	return d, nil
}

func matrixFromRows(field string, rows [][]float64) (nbs.Matrix, error) {
	m, err := nbs.MatrixFromRows(rows)
	if err != nil {
		return nbs.Matrix{}, errors.Wrap(err, fmt.Sprintf("invalid %s", field))
	}
	return m, nil
}
