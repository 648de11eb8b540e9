// =============================================================================
// Branch Sales Aggregator - XLSX Exporter
// =============================================================================
//
// The workbook export carries the same table as the CSV plus two roll-ups.
//
// SHEETS:
//   - "By Branch":  Shop, Product Code, Product Name, Total Quantity, Total Sales
//   - "By Product": Product Code, Product Name, Total Quantity, Total Sales
//   - "Summary":    one metric per row
//
// Numbers are stored as numbers and displayed with the configured number of
// decimals, so spreadsheet formulas keep working on the export.
//
// =============================================================================

package exporter

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
)

// Sheet names of the workbook export.
const (
	SheetByBranch  = "By Branch"
	SheetByProduct = "By Product"
	SheetSummary   = "Summary"
)

// WriteXLSX writes the workbook to w.
//
// PARAMETERS:
//   - w: The destination.
//   - rows: Aggregated rows, one per branch and product.
//   - products: Product totals across branches.
//   - stats: The run summary.
//   - opts: Decimal places for the number formats. BOM is ignored.
func WriteXLSX(w io.Writer, rows []types.AggregatedRow, products []types.ProductTotal, stats types.SummaryStats, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetByBranch); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetByProduct, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
	}

	styles, err := newStyles(f, opts)
	if err != nil {
		return err
	}

	if err := writeByBranch(f, styles, rows); err != nil {
		return err
	}
	if err := writeByProduct(f, styles, products); err != nil {
		return err
	}
	if err := writeSummary(f, styles, stats); err != nil {
		return err
	}

	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ExportXLSX renders the workbook in memory.
func ExportXLSX(rows []types.AggregatedRow, products []types.ProductTotal, stats types.SummaryStats, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, rows, products, stats, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// =============================================================================
// SHEET WRITERS
// =============================================================================

type sheetStyles struct {
	header   int
	quantity int
	amount   int
}

func newStyles(f *excelize.File, opts Options) (sheetStyles, error) {
	var s sheetStyles
	var err error

	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}

	quantityFmt := numberFormat(opts.QuantityDecimals)
	if s.quantity, err = f.NewStyle(&excelize.Style{CustomNumFmt: &quantityFmt}); err != nil {
		return s, fmt.Errorf("failed to create quantity style: %w", err)
	}

	amountFmt := numberFormat(opts.AmountDecimals)
	if s.amount, err = f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt}); err != nil {
		return s, fmt.Errorf("failed to create amount style: %w", err)
	}

	return s, nil
}

// numberFormat returns an Excel format code such as "0" or "0.00".
func numberFormat(decimals int) string {
	if decimals <= 0 {
		return "0"
	}
	return "0." + strings.Repeat("0", decimals)
}

func writeByBranch(f *excelize.File, s sheetStyles, rows []types.AggregatedRow) error {
	if err := writeHeader(f, SheetByBranch, s, Header); err != nil {
		return err
	}

	for i, row := range rows {
		r := i + 2
		values := []interface{}{row.Branch, row.ProductCode, row.ProductName, row.TotalQuantity, row.TotalSales}
		if err := f.SetSheetRow(SheetByBranch, cell(1, r), &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r, err)
		}
	}

	if len(rows) > 0 {
		last := len(rows) + 1
		if err := f.SetCellStyle(SheetByBranch, cell(4, 2), cell(4, last), s.quantity); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetByBranch, cell(5, 2), cell(5, last), s.amount); err != nil {
			return err
		}
	}
	return nil
}

func writeByProduct(f *excelize.File, s sheetStyles, products []types.ProductTotal) error {
	if err := writeHeader(f, SheetByProduct, s, []string{"Product Code", "Product Name", "Total Quantity", "Total Sales"}); err != nil {
		return err
	}

	for i, p := range products {
		r := i + 2
		values := []interface{}{p.ProductCode, p.ProductName, p.TotalQuantity, p.TotalSales}
		if err := f.SetSheetRow(SheetByProduct, cell(1, r), &values); err != nil {
			return fmt.Errorf("failed to write product row %d: %w", r, err)
		}
	}

	if len(products) > 0 {
		last := len(products) + 1
		if err := f.SetCellStyle(SheetByProduct, cell(3, 2), cell(3, last), s.quantity); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetByProduct, cell(4, 2), cell(4, last), s.amount); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, s sheetStyles, stats types.SummaryStats) error {
	if err := writeHeader(f, SheetSummary, s, []string{"Metric", "Value"}); err != nil {
		return err
	}

	metrics := []struct {
		name  string
		value interface{}
		style int
	}{
		{"Total rows", stats.TotalRows, 0},
		{"Dropped rows", stats.DroppedRows, 0},
		{"Filtered rows", stats.FilteredRows, 0},
		{"Summary rows skipped", stats.SummaryRowsSkipped, 0},
		{"Aggregated rows", stats.AggregatedRows, 0},
		{"Output rows", stats.OutputRows, 0},
		{"Branches", stats.Branches, 0},
		{"Products", stats.Products, 0},
		{"Grand total quantity", stats.GrandTotalQuantity, s.quantity},
		{"Grand total sales", stats.GrandTotalSales, s.amount},
	}

	for i, m := range metrics {
		r := i + 2
		values := []interface{}{m.name, m.value}
		if err := f.SetSheetRow(SheetSummary, cell(1, r), &values); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", r, err)
		}
		if m.style != 0 {
			if err := f.SetCellStyle(SheetSummary, cell(2, r), cell(2, r), m.style); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, s sheetStyles, names []string) error {
	values := make([]interface{}, len(names))
	for i, n := range names {
		values[i] = n
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", cell(len(names), 1), s.header); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}

// cell converts 1-based column and row numbers to an A1 reference.
func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		// Only reachable with non-positive coordinates.
		panic(err)
	}
	return name
}
