// =============================================================================
// Branch Sales Aggregator - CSV Exporter
// =============================================================================
//
// The CSV export is the downloadable product of an analysis. Its layout is
// fixed:
//
//   Shop,Product Code,Product Name,Total Quantity,Total Sales
//   AWAISIA,P100,Widget,8,80.00
//
// Numbers use a fixed number of decimals (see Options) so that the same
// input always gives the same bytes. Quoting follows encoding/csv.
//
// =============================================================================

package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/config"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
)

// Header is the first line of every CSV export.
var Header = []string{"Shop", "Product Code", "Product Name", "Total Quantity", "Total Sales"}

// utf8BOM helps Excel recognize UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options configures number formatting and the byte order mark.
type Options struct {
	// QuantityDecimals is the number of decimals for Total Quantity.
	QuantityDecimals int

	// AmountDecimals is the number of decimals for Total Sales.
	AmountDecimals int

	// BOM prefixes the output with a UTF-8 byte order mark.
	BOM bool
}

// DefaultOptions returns whole quantities, two-decimal amounts and no BOM.
func DefaultOptions() Options {
	return Options{QuantityDecimals: 0, AmountDecimals: 2}
}

// OptionsFromConfig builds Options from the export section of the config.
func OptionsFromConfig(settings config.ExportSettings) Options {
	return Options{
		QuantityDecimals: settings.QuantityPrecision(),
		AmountDecimals:   settings.AmountPrecision(),
		BOM:              settings.BOM,
	}
}

// WriteCSV writes the header and one line per aggregated row to w.
//
// PARAMETERS:
//   - w: The destination.
//   - rows: Aggregated rows in the order they should appear.
//   - opts: Formatting options.
//
// RETURNS:
//   - An error if writing fails.
func WriteCSV(w io.Writer, rows []types.AggregatedRow, opts Options) error {
	if opts.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		record := []string{
			row.Branch,
			row.ProductCode,
			row.ProductName,
			formatNumber(row.TotalQuantity, opts.QuantityDecimals),
			formatNumber(row.TotalSales, opts.AmountDecimals),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Export renders rows as CSV in memory.
func Export(rows []types.AggregatedRow, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
