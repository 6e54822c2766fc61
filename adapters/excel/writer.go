package excel

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gonbs/internal/errors"
)

// WriteTable writes rows to path as CSV or as a single-sheet workbook,
// chosen by extension.
func WriteTable(path string, rows [][]float64) error {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return writeCSV(path, rows)
	}
	return writeExcel(path, rows)
}

func writeCSV(path string, rows [][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create CSV file")
	}
	defer file.Close()

	w := csv.NewWriter(file)
	record := make([]string, 0)
	for _, row := range rows {
		record = record[:0]
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "failed to flush CSV file")
}

func writeExcel(path string, rows [][]float64) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "invalid cell coordinates")
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i+1)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrap(err, "failed to save workbook")
	}
	return nil
}
