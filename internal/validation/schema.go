// =============================================================================
// Branch Sales Aggregator - Schema Validator
// =============================================================================
//
// The schema check runs once per upload, before any row is looked at. A
// missing required column aborts the whole run; nothing partial is produced.
//
// MATCHING RULES:
//   - Header cells are compared after trimming surrounding whitespace
//   - The comparison itself is exact and case-sensitive ("shop" != "Shop")
//   - Columns may appear in any order
//   - Extra columns are ignored
//   - When a required name appears twice the first column is used
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
)

// =============================================================================
// SCHEMA ERROR
// =============================================================================

// SchemaError reports required columns missing from the header.
type SchemaError struct {
	// Missing lists the absent column names in canonical order.
	Missing []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	quoted := make([]string, len(e.Missing))
	for i, name := range e.Missing {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	noun := "column"
	if len(e.Missing) > 1 {
		noun = "columns"
	}
	return fmt.Sprintf("missing required %s: %s", noun, strings.Join(quoted, ", "))
}

// =============================================================================
// COLUMN RESOLUTION
// =============================================================================

// Columns maps each required column to its index in the header.
type Columns struct {
	Shop         int
	Receipt      int
	CustomerName int
	ProductCode  int
	ProductName  int
	RetailPrice  int
	Quantity     int
	SalesTax     int
}

// ValidateSchema checks that headers contain every required column.
//
// PARAMETERS:
//   - headers: The header row as read from the file.
//
// RETURNS:
//   - nil when every required column is present.
//   - A *SchemaError naming each missing column otherwise.
func ValidateSchema(headers []string) error {
	_, err := ResolveColumns(headers)
	return err
}

// ResolveColumns validates headers and returns the index of every required
// column.
func ResolveColumns(headers []string) (Columns, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if _, exists := index[name]; !exists {
			index[name] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	cols := Columns{
		Shop:         lookup(types.ColumnShop),
		Receipt:      lookup(types.ColumnReceipt),
		CustomerName: lookup(types.ColumnCustomerName),
		ProductCode:  lookup(types.ColumnProductCode),
		ProductName:  lookup(types.ColumnProductName),
		RetailPrice:  lookup(types.ColumnRetailPrice),
		Quantity:     lookup(types.ColumnQuantity),
		SalesTax:     lookup(types.ColumnSalesTax),
	}

	if len(missing) > 0 {
		return Columns{}, &SchemaError{Missing: missing}
	}
	return cols, nil
}

// Extract builds a RawRow from one record. Cells past the end of a short
// record read as empty.
func (c Columns) Extract(record []string, line int) types.RawRow {
	cell := func(i int) string {
		if i >= 0 && i < len(record) {
			return record[i]
		}
		return ""
	}

	return types.RawRow{
		Shop:         cell(c.Shop),
		Receipt:      cell(c.Receipt),
		CustomerName: cell(c.CustomerName),
		ProductCode:  cell(c.ProductCode),
		ProductName:  cell(c.ProductName),
		RetailPrice:  cell(c.RetailPrice),
		Quantity:     cell(c.Quantity),
		SalesTax:     cell(c.SalesTax),
		Line:         line,
	}
}
