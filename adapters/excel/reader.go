// Package excel loads numeric tables (connectivity matrices, designs, edge
// lists, permutation banks) from .xlsx or .csv files and writes results back.
package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"gonbs/domain/nbs"
	"gonbs/internal/errors"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
}

// NewDataReader creates a reader for path. Files ending in .csv are parsed as
// CSV, everything else as a workbook.
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// WithSheet selects a worksheet by name. The first sheet is used otherwise.
func (r *DataReader) WithSheet(sheet string) *DataReader {
	r.sheet = sheet
	return r
}

// ReadTable returns every numeric row of the file. A leading row containing
// any non-numeric cell is treated as a header and skipped; blank cells in
// later rows read as 0, anything else non-numeric is an error.
func (r *DataReader) ReadTable() ([][]float64, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput(fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath))
	}

	var raw [][]string
	var err error
	switch r.fileType {
	case "csv":
		raw, err = r.readCSV()
	default:
		raw, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}
	return parseRows(raw)
}

func (r *DataReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	return rows, nil
}

func (r *DataReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse CSV file")
	}
	return rows, nil
}

func parseRows(raw [][]string) ([][]float64, error) {
	var out [][]float64
	for i, row := range raw {
		if isBlank(row) {
			continue
		}
		values, err := parseRow(row)
		if err != nil {
			if len(out) == 0 && i == firstNonBlank(raw) {
				continue // header
			}
			return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrapf(err, "row %d", i+1))
		}
		out = append(out, values)
	}
	return out, nil
}

func parseRow(row []string) ([]float64, error) {
	values := make([]float64, len(row))
	for j, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %q is not a number", j+1, cell)
		}
		values[j] = v
	}
	return values, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func firstNonBlank(raw [][]string) int {
	for i, row := range raw {
		if !isBlank(row) {
			return i
		}
	}
	return -1
}

// ReadMatrix reads a square connectivity matrix.
func (r *DataReader) ReadMatrix() (nbs.Matrix, error) {
	rows, err := r.ReadTable()
	if err != nil {
		return nbs.Matrix{}, err
	}
	return nbs.MatrixFromRows(padRows(rows))
}

// ReadDense reads a rectangular table such as a design or response matrix.
func (r *DataReader) ReadDense() (*mat.Dense, error) {
	rows, err := r.ReadTable()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.ShapeMismatch("%s holds no numeric rows", r.filePath)
	}
	rows = padRows(rows)
	d := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		d.SetRow(i, row)
	}
	return d, nil
}

// ReadVector flattens the table row by row.
func (r *DataReader) ReadVector() ([]float64, error) {
	rows, err := r.ReadTable()
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, row := range rows {
		out = append(out, row...)
	}
	return out, nil
}

// ReadLabels reads integer network labels, one per edge.
func (r *DataReader) ReadLabels() ([]int, error) {
	values, err := r.ReadVector()
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(values))
	for k, v := range values {
		if v != math.Trunc(v) {
			return nil, errors.InvalidInput(fmt.Sprintf("label %d (%v) is not an integer", k+1, v))
		}
		labels[k] = int(v)
	}
	return labels, nil
}

// ReadEdgeList reads I,J[,V] rows with 1-based node indices and returns a
// 0-based edge list. Two-column files get weight 1 on every edge.
func (r *DataReader) ReadEdgeList() (nbs.EdgeList, error) {
	rows, err := r.ReadTable()
	if err != nil {
		return nbs.EdgeList{}, err
	}
	var el nbs.EdgeList
	for k, row := range rows {
		if len(row) < 2 {
			return nbs.EdgeList{}, errors.ShapeMismatch("edge row %d has %d columns, expected I,J[,V]", k+1, len(row))
		}
		i, j := row[0], row[1]
		if i != math.Trunc(i) || j != math.Trunc(j) || i < 1 || j < 1 {
			return nbs.EdgeList{}, errors.InvalidInput(fmt.Sprintf("edge row %d: indices must be positive integers", k+1))
		}
		w := 1.0
		if len(row) > 2 {
			w = row[2]
		}
		el.I = append(el.I, int(i)-1)
		el.J = append(el.J, int(j)-1)
		el.V = append(el.V, w)
	}
	return el, nil
}

// ReadBank reads an edges × K table whose columns are permutation replicates.
func (r *DataReader) ReadBank() (nbs.PermutationBank, error) {
	d, err := r.ReadDense()
	if err != nil {
		return nbs.PermutationBank{}, err
	}
	_, k := d.Dims()
	reps := make([][]float64, k)
	for p := 0; p < k; p++ {
		reps[p] = mat.Col(nil, p, d)
	}
	return nbs.PermutationBank{Replicates: reps}, nil
}

// padRows extends short rows with zeros to the widest row.
func padRows(rows [][]float64) [][]float64 {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for i, row := range rows {
		if len(row) < width {
			rows[i] = append(row, make([]float64, width-len(row))...)
		}
	}
	return rows
}
