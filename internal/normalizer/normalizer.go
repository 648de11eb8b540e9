// =============================================================================
// Branch Sales Aggregator - Row Normalizer
// =============================================================================
//
// The normalizer turns a RawRow into a NormalizedRow. It is the only place
// where cell text becomes numbers.
//
// NORMALIZATION RULES:
//   - Shop, Product Code and Product Name are trimmed
//   - Receipt and Customer Name are trimmed and otherwise passed through
//   - Retail Price, Quantity and Sales + Tax go through validation.ParseAmount
//
// A row is rejected (and later counted as dropped) when:
//   - Any numeric field is empty or not a number
//   - Retail Price is negative
//   - Product Code is empty after trimming
//
// Negative Quantity and Sales + Tax are kept. POS exports record returns
// that way and they must net out of the totals.
//
// =============================================================================

package normalizer

import (
	"strings"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/validation"
)

// Normalize converts one raw row.
//
// PARAMETERS:
//   - raw: The row as extracted from the input table.
//
// RETURNS:
//   - The normalized row.
//   - A *validation.InvalidRowError describing the first problem found.
func Normalize(raw types.RawRow) (types.NormalizedRow, error) {
	row := types.NormalizedRow{
		Shop:         strings.TrimSpace(raw.Shop),
		Receipt:      strings.TrimSpace(raw.Receipt),
		CustomerName: strings.TrimSpace(raw.CustomerName),
		ProductCode:  strings.TrimSpace(raw.ProductCode),
		ProductName:  strings.TrimSpace(raw.ProductName),
		Line:         raw.Line,
	}

	if row.ProductCode == "" {
		return types.NormalizedRow{}, &validation.InvalidRowError{
			Line:   raw.Line,
			Field:  types.ColumnProductCode,
			Value:  raw.ProductCode,
			Reason: validation.ReasonMissingProduct,
		}
	}

	var err error
	if row.RetailPrice, err = amount(raw.Line, types.ColumnRetailPrice, raw.RetailPrice); err != nil {
		return types.NormalizedRow{}, err
	}
	if row.RetailPrice < 0 {
		return types.NormalizedRow{}, &validation.InvalidRowError{
			Line:   raw.Line,
			Field:  types.ColumnRetailPrice,
			Value:  raw.RetailPrice,
			Reason: validation.ReasonNegativePrice,
		}
	}
	if row.Quantity, err = amount(raw.Line, types.ColumnQuantity, raw.Quantity); err != nil {
		return types.NormalizedRow{}, err
	}
	if row.SalesTax, err = amount(raw.Line, types.ColumnSalesTax, raw.SalesTax); err != nil {
		return types.NormalizedRow{}, err
	}

	return row, nil
}

// amount parses one numeric cell, wrapping failures with their location.
func amount(line int, field, value string) (float64, error) {
	v, err := validation.ParseAmount(value)
	if err != nil {
		return 0, &validation.InvalidRowError{
			Line:   line,
			Field:  field,
			Value:  value,
			Reason: err.Error(),
		}
	}
	return v, nil
}

// IsSummaryRow reports whether shop marks a subtotal or grand-total line
// rather than a sale. Such lines have no shop, or a shop cell containing
// "total" in any case ("Branch Total", "GRAND TOTAL").
func IsSummaryRow(shop string) bool {
	shop = strings.TrimSpace(shop)
	if shop == "" {
		return true
	}
	return strings.Contains(strings.ToLower(shop), "total")
}
