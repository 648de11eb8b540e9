// =============================================================================
// Branch Sales Aggregator - XLSX Input Reader
// =============================================================================
//
// Some branches send their sales export as an Excel workbook rather than a
// CSV file. This module reads such a workbook into the same CSVData table
// the CSV parser produces, so the rest of the pipeline does not care which
// format arrived.
//
// READING RULES:
//   - Only one worksheet is read: the named one, or the first sheet
//   - Cells are read as displayed, so amounts keep their separators and
//     currency symbols and go through the same numeric cleaning as CSV
//   - The first non-blank row is the header; later blank rows are skipped
//   - Line numbers in CSVData.Lines are worksheet row numbers
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/csvparser"
)

// Options selects what to read from the workbook.
type Options struct {
	// Sheet is the worksheet name. Empty means the first sheet.
	Sheet string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a workbook from r using the first worksheet.
func Parse(r io.Reader) (*csvparser.CSVData, error) {
	return ParseWithOptions(r, Options{})
}

// ParseWithOptions reads a workbook from r.
//
// PARAMETERS:
//   - r: The workbook bytes.
//   - opts: Which worksheet to read.
//
// RETURNS:
//   - The worksheet as a table.
//   - csvparser.ErrEmptyInput if the sheet has no header row, or an error
//     if the workbook cannot be opened.
func ParseWithOptions(r io.Reader, opts Options) (*csvparser.CSVData, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := opts.Sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}

	data := &csvparser.CSVData{}

	for i, row := range rows {
		if isRowEmpty(row) {
			continue
		}

		if data.Headers == nil {
			data.Headers = cleanHeaders(row)
			data.ColumnCount = len(data.Headers)
			continue
		}

		data.Records = append(data.Records, row)
		data.Lines = append(data.Lines, i+1)
	}

	if data.Headers == nil {
		return nil, csvparser.ErrEmptyInput
	}

	data.RowCount = len(data.Records)
	return data, nil
}

// IsWorkbook reports whether name has a workbook extension.
func IsWorkbook(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xlsm")
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, h := range headers {
		cleaned[i] = strings.TrimSpace(h)
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
