package nbs

import (
	"gonbs/internal/errors"
)

// Matrix is a square N×N matrix of edge weights stored row-major.
// Edges are read from the upper triangle (i < j).
type Matrix struct {
	N    int
	Data []float64
}

// NewMatrix allocates a zeroed N×N matrix.
func NewMatrix(n int) Matrix {
	return Matrix{N: n, Data: make([]float64, n*n)}
}

// MatrixFromRows builds a Matrix from a slice of rows, failing with
// ShapeMismatch unless the rows form a square grid.
func MatrixFromRows(rows [][]float64) (Matrix, error) {
	n := len(rows)
	m := NewMatrix(n)
	for i, row := range rows {
		if len(row) != n {
			return Matrix{}, errors.ShapeMismatch("matrix must be square: row %d has %d columns, expected %d", i, len(row), n)
		}
		copy(m.Data[i*n:(i+1)*n], row)
	}
	return m, nil
}

// Validate checks that Data holds exactly N×N entries.
func (m Matrix) Validate() error {
	if m.N < 0 || len(m.Data) != m.N*m.N {
		return errors.ShapeMismatch("matrix must be square: %d entries for N=%d", len(m.Data), m.N)
	}
	return nil
}

// At returns the entry at row i, column j.
func (m Matrix) At(i, j int) float64 {
	return m.Data[i*m.N+j]
}

// Set writes the entry at row i, column j.
func (m Matrix) Set(i, j int, v float64) {
	m.Data[i*m.N+j] = v
}

// SetSym writes v at (i,j) and (j,i).
func (m Matrix) SetSym(i, j int, v float64) {
	m.Data[i*m.N+j] = v
	m.Data[j*m.N+i] = v
}

// Edge returns the weight of the undirected edge {i,j} from the upper triangle.
func (m Matrix) Edge(i, j int) float64 {
	if i > j {
		i, j = j, i
	}
	return m.Data[i*m.N+j]
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	out := Matrix{N: m.N, Data: make([]float64, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// Rows returns the matrix as a slice of row slices.
func (m Matrix) Rows() [][]float64 {
	rows := make([][]float64, m.N)
	for i := range rows {
		rows[i] = make([]float64, m.N)
		copy(rows[i], m.Data[i*m.N:(i+1)*m.N])
	}
	return rows
}

// NumEdges is the number of upper-triangle slots, N(N-1)/2.
func NumEdges(n int) int {
	return n * (n - 1) / 2
}

// UpperTriangle flattens the strict upper triangle row by row.
func (m Matrix) UpperTriangle() []float64 {
	out := make([]float64, 0, NumEdges(m.N))
	for i := 0; i < m.N; i++ {
		for j := i + 1; j < m.N; j++ {
			out = append(out, m.Data[i*m.N+j])
		}
	}
	return out
}

// FromUpperTriangle is the inverse of UpperTriangle: it fills a symmetric
// matrix with a zero diagonal.
func FromUpperTriangle(vec []float64, n int) (Matrix, error) {
	if n < 0 || len(vec) != NumEdges(n) {
		return Matrix{}, errors.ShapeMismatch("edge vector has %d entries, expected %d for %d nodes", len(vec), NumEdges(n), n)
	}
	m := NewMatrix(n)
	k := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m.SetSym(i, j, vec[k])
			k++
		}
	}
	return m, nil
}

// NodesForEdges recovers N from an upper-triangle edge count, or -1 when the
// count is not triangular.
func NodesForEdges(numEdges int) int {
	n := 0
	for NumEdges(n) < numEdges {
		n++
	}
	if NumEdges(n) != numEdges {
		return -1
	}
	return n
}
