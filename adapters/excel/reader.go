// Package excel reads bulk measurement imports from XLSX or CSV uploads.
// Rows feed the same normalisation and dedup path as lab extractions.
package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"flomentum/domain/upload"
)

// ImportRow is one parsed spreadsheet row, dated and ready to normalise
type ImportRow struct {
	Biomarker upload.RawBiomarker
	TestDate  time.Time
}

// RowError records why one spreadsheet row was skipped
type RowError struct {
	Row    int    `json:"row"` // 1-based, header is row 1
	Reason string `json:"reason"`
}

// ImportResult is the outcome of parsing one upload: usable rows plus the
// rows that could not be read. Partial success is normal.
type ImportResult struct {
	Rows    []ImportRow
	Skipped []RowError
}

// header aliases accepted for each required column, lowercased
var (
	nameAliases  = []string{"biomarker", "name", "marker", "test"}
	valueAliases = []string{"value", "result"}
	unitAliases  = []string{"unit", "units"}
	dateAliases  = []string{"test_date", "date", "collected", "collection_date"}
)

// dateLayouts are tried in order for per-row date cells
var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "2006-01-02 15:04:05"}

// Reader parses measurement spreadsheets
type Reader struct {
	// DefaultTestDate is used for rows without a date column or cell
	DefaultTestDate time.Time
}

// ReadXLSX parses the first sheet of an XLSX upload
func (r *Reader) ReadXLSX(src io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return r.processRows(rows)
}

// ReadCSV parses a CSV upload with the same column conventions
func (r *Reader) ReadCSV(src io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return r.processRows(rows)
}

// processRows maps header aliases to columns and converts each data row
func (r *Reader) processRows(rows [][]string) (*ImportResult, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("upload must have a header row and at least one data row")
	}

	nameCol := findColumn(rows[0], nameAliases)
	valueCol := findColumn(rows[0], valueAliases)
	unitCol := findColumn(rows[0], unitAliases)
	dateCol := findColumn(rows[0], dateAliases)
	if nameCol < 0 || valueCol < 0 || unitCol < 0 {
		return nil, fmt.Errorf("missing required columns: need biomarker, value, and unit")
	}

	result := &ImportResult{}
	for i, row := range rows[1:] {
		rowNum := i + 2

		name := cell(row, nameCol)
		if name == "" {
			result.Skipped = append(result.Skipped, RowError{Row: rowNum, Reason: "empty biomarker name"})
			continue
		}
		value, err := strconv.ParseFloat(cell(row, valueCol), 64)
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Row: rowNum, Reason: fmt.Sprintf("value %q is not numeric", cell(row, valueCol))})
			continue
		}
		unit := cell(row, unitCol)
		if unit == "" {
			result.Skipped = append(result.Skipped, RowError{Row: rowNum, Reason: "empty unit"})
			continue
		}

		testDate := r.DefaultTestDate
		if dateCol >= 0 && cell(row, dateCol) != "" {
			parsed, err := parseDate(cell(row, dateCol))
			if err != nil {
				result.Skipped = append(result.Skipped, RowError{Row: rowNum, Reason: fmt.Sprintf("unreadable date %q", cell(row, dateCol))})
				continue
			}
			testDate = parsed
		}

		result.Rows = append(result.Rows, ImportRow{
			Biomarker: upload.RawBiomarker{Name: name, Value: value, Unit: unit},
			TestDate:  testDate,
		})
	}

	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("no usable rows: all %d data rows were skipped", len(result.Skipped))
	}
	return result, nil
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, a := range aliases {
			if h == a {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", s)
}
