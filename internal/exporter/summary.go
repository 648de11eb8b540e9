package exporter

import (
	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
)

// Counts are the row tallies gathered while a table is analyzed.
type Counts struct {
	Total          int
	Dropped        int
	Filtered       int
	SummarySkipped int
}

// Summarize builds the preview statistics from the row tallies and the
// aggregated output.
func Summarize(counts Counts, rows []types.AggregatedRow) types.SummaryStats {
	stats := types.SummaryStats{
		TotalRows:          counts.Total,
		DroppedRows:        counts.Dropped,
		FilteredRows:       counts.Filtered,
		SummaryRowsSkipped: counts.SummarySkipped,
		OutputRows:         len(rows),
	}

	branches := make(map[string]struct{})
	products := make(map[string]struct{})

	for _, row := range rows {
		stats.AggregatedRows += row.Rows
		stats.GrandTotalQuantity += row.TotalQuantity
		stats.GrandTotalSales += row.TotalSales
		branches[row.Branch] = struct{}{}
		products[row.ProductCode] = struct{}{}
	}

	stats.Branches = len(branches)
	stats.Products = len(products)
	return stats
}
