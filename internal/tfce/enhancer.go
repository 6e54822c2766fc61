package tfce

import (
	"gonbs/domain/nbs"
	"gonbs/internal/errors"
)

// Method names an enhancement variant.
type Method string

const (
	MethodDense     Method = "dense"
	MethodExact     Method = "exact"
	MethodReference Method = "reference"
	MethodNone      Method = "none"
)

// Enhancer computes a cluster-enhanced score for a weighted graph.
type Enhancer interface {
	Method() Method
	Enhance(m nbs.Matrix) (nbs.Matrix, error)
}

type denseEnhancer struct{ p Params }

func (d denseEnhancer) Method() Method                           { return MethodDense }
func (d denseEnhancer) Enhance(m nbs.Matrix) (nbs.Matrix, error) { return Dense(m, d.p) }

type exactEnhancer struct{ p Params }

func (e exactEnhancer) Method() Method                           { return MethodExact }
func (e exactEnhancer) Enhance(m nbs.Matrix) (nbs.Matrix, error) { return Exact(m, e.p) }

type referenceEnhancer struct{ p Params }

func (r referenceEnhancer) Method() Method                           { return MethodReference }
func (r referenceEnhancer) Enhance(m nbs.Matrix) (nbs.Matrix, error) { return Reference(m, r.p) }

// identity leaves the statistic untouched; negative entries are zeroed so
// the output still reads as edge strengths.
type identity struct{}

func (identity) Method() Method { return MethodNone }
func (identity) Enhance(m nbs.Matrix) (nbs.Matrix, error) {
	if err := m.Validate(); err != nil {
		return nbs.Matrix{}, err
	}
	out := m.Clone()
	for k, w := range out.Data {
		if !(w > 0) {
			out.Data[k] = 0
		}
	}
	for i := 0; i < out.N; i++ {
		out.Set(i, i, 0)
	}
	return out, nil
}

// NewEnhancer returns the variant named by method. An empty method selects dense.
func NewEnhancer(method Method, p Params) (Enhancer, error) {
	switch method {
	case MethodDense, "":
		return denseEnhancer{p}, nil
	case MethodExact:
		return exactEnhancer{p}, nil
	case MethodReference:
		return referenceEnhancer{p}, nil
	case MethodNone:
		return identity{}, nil
	default:
		return nil, errors.InvalidParameter("unknown enhancement method %q", method)
	}
}
