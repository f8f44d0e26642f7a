// Package tabular loads student-submission tables from CSV or spreadsheet
// files into ordered row records.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for file extensions the reader does
// not recognize.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// ErrEmptyTable is returned when the loaded table has no data rows.
var ErrEmptyTable = errors.New("student file contains no rows")

// ErrRead wraps underlying I/O or parse failures.
var ErrRead = errors.New("error reading student file")

// Row is a single table row: cell values addressable by column name,
// with the original column order preserved.
type Row struct {
	columns []string
	cells   map[string]string
}

// NewRow builds a row from explicit columns and cells. Rows normally come
// from Read; this is for callers assembling rows programmatically.
func NewRow(columns []string, cells map[string]string) Row {
	c := make(map[string]string, len(cells))
	for k, v := range cells {
		c[k] = v
	}
	return Row{columns: columns, cells: c}
}

// Get returns the cell under the named column and whether the column
// exists in the table header.
func (r Row) Get(name string) (string, bool) {
	v, ok := r.cells[name]
	return v, ok
}

// Columns returns the header names in table order.
func (r Row) Columns() []string {
	return r.columns
}

// Read loads the table at path into row records. The format is inferred
// from the extension: .csv, or .xlsx/.xlsm/.xls for spreadsheets. The
// first row is the header.
func Read(path string) ([]Row, error) {
	var records [][]string
	var err error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx", ".xlsm", ".xls":
		records, err = readSheet(path)
	default:
		return nil, fmt.Errorf("%w: %q (supported: .csv, .xlsx, .xls)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, path)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		cells := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				cells[name] = rec[i]
			} else {
				cells[name] = ""
			}
		}
		rows = append(rows, Row{columns: header, cells: cells})
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows; missing cells read as empty
	return r.ReadAll()
}

func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}
