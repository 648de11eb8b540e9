// =============================================================================
// Branch Sales Aggregator - Shared Types
// =============================================================================
//
// This package contains the row and report types shared by every pipeline
// stage. Keeping them here avoids import cycles between:
//   - normalizer
//   - aggregator
//   - exporter
//   - analyzer
//
// =============================================================================

package types

// =============================================================================
// INPUT ROWS
// =============================================================================

// Required input column names, exactly as they appear in the POS export.
const (
	ColumnShop         = "Shop"
	ColumnReceipt      = "Receipt"
	ColumnCustomerName = "Customer Name"
	ColumnProductCode  = "Product Code"
	ColumnProductName  = "Product Name"
	ColumnRetailPrice  = "Retail Price"
	ColumnQuantity     = "Quantity"
	ColumnSalesTax     = "Sales + Tax"
)

// RequiredColumns lists the input header in its canonical order.
var RequiredColumns = []string{
	ColumnShop,
	ColumnReceipt,
	ColumnCustomerName,
	ColumnProductCode,
	ColumnProductName,
	ColumnRetailPrice,
	ColumnQuantity,
	ColumnSalesTax,
}

// RawRow is one ingested sales record with every field still a string.
type RawRow struct {
	Shop         string
	Receipt      string
	CustomerName string
	ProductCode  string
	ProductName  string
	RetailPrice  string
	Quantity     string
	SalesTax     string

	// Line is the 1-based line number in the source file.
	// Only used for error reporting.
	Line int
}

// NormalizedRow is a RawRow with trimmed identifiers and numeric amounts.
//
// RetailPrice is never negative. Quantity and SalesTax may be negative,
// since returns and credits are legitimate sales lines.
type NormalizedRow struct {
	Shop         string
	Receipt      string
	CustomerName string
	ProductCode  string
	ProductName  string
	RetailPrice  float64
	Quantity     float64
	SalesTax     float64
	Line         int
}

// =============================================================================
// AGGREGATED OUTPUT
// =============================================================================

// GroupKey identifies one output row.
// Rows sharing a product code but spelling the product name differently
// are separate groups.
type GroupKey struct {
	Branch      string
	ProductCode string
	ProductName string
}

// AggregatedRow is the sum over every NormalizedRow sharing a GroupKey.
type AggregatedRow struct {
	GroupKey
	TotalQuantity float64
	TotalSales    float64

	// Rows is the number of input rows merged into this one.
	Rows int
}

// ProductTotal is a product summed across all allowed branches.
type ProductTotal struct {
	ProductCode   string  `json:"product_code"`
	ProductName   string  `json:"product_name"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalSales    float64 `json:"total_sales"`
}

// BranchTotal is the sum of every aggregated row of one branch.
type BranchTotal struct {
	Branch        string  `json:"branch"`
	Products      int     `json:"products"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalSales    float64 `json:"total_sales"`
}

// =============================================================================
// SUMMARY
// =============================================================================

// SummaryStats describes one pipeline run for the preview.
//
// AggregatedRows + DroppedRows + FilteredRows always equals TotalRows.
type SummaryStats struct {
	// TotalRows is the number of data records read (blank lines excluded).
	TotalRows int `json:"total_rows"`

	// DroppedRows were rejected by the normalizer (bad numbers, no code).
	DroppedRows int `json:"dropped_rows"`

	// FilteredRows were excluded by the branch allow-list or as summary lines.
	FilteredRows int `json:"filtered_rows"`

	// SummaryRowsSkipped is the part of FilteredRows that were subtotal lines.
	SummaryRowsSkipped int `json:"summary_rows_skipped"`

	// AggregatedRows contributed to the output.
	AggregatedRows int `json:"aggregated_rows"`

	// OutputRows is the number of aggregated lines written.
	OutputRows int `json:"output_rows"`

	Branches           int     `json:"branches"`
	Products           int     `json:"products"`
	GrandTotalQuantity float64 `json:"grand_total_quantity"`
	GrandTotalSales    float64 `json:"grand_total_sales"`
}

// Warning is a non-fatal condition reported alongside a successful run.
type Warning string

// WarningEmptyResult means no row survived validation and filtering.
const WarningEmptyResult Warning = "no valid rows from the allowed branches; the report is empty"
