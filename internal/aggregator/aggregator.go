// =============================================================================
// Branch Sales Aggregator - Aggregator
// =============================================================================
//
// The aggregator sums normalized rows into one line per
// (branch, product code, product name).
//
// GROUPING:
//   - Branch spellings that differ only in case or surrounding whitespace
//     are one branch. The first spelling seen is the one displayed.
//   - Product code and product name are compared exactly, after the
//     normalizer trimmed them. The same code under two names gives two lines.
//   - Rows of different branches are never merged.
//
// ORDERING:
//   Output is sorted by branch (case-insensitive, then exact spelling),
//   product code, then product name, so that the same input always yields
//   the same bytes.
//
// =============================================================================

package aggregator

import (
	"cmp"
	"slices"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/branch"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
)

type groupID struct {
	branch      string
	productCode string
	productName string
}

// Aggregate groups rows using the default branch key.
func Aggregate(rows []types.NormalizedRow) []types.AggregatedRow {
	return AggregateBy(rows, branch.Key)
}

// AggregateBy groups rows, comparing branch names through normalize.
//
// PARAMETERS:
//   - rows: Normalized rows, already filtered.
//   - normalize: Maps a shop name to its grouping key.
//
// RETURNS:
//   - One AggregatedRow per group in deterministic order. Empty input gives
//     an empty, non-nil slice.
func AggregateBy(rows []types.NormalizedRow, normalize branch.Normalizer) []types.AggregatedRow {
	if normalize == nil {
		normalize = branch.Key
	}

	display := make(map[string]string)
	index := make(map[groupID]int)
	out := make([]types.AggregatedRow, 0)

	for _, row := range rows {
		key := normalize(row.Shop)
		name, seen := display[key]
		if !seen {
			name = row.Shop
			display[key] = name
		}

		id := groupID{branch: key, productCode: row.ProductCode, productName: row.ProductName}
		i, exists := index[id]
		if !exists {
			i = len(out)
			index[id] = i
			out = append(out, types.AggregatedRow{
				GroupKey: types.GroupKey{
					Branch:      name,
					ProductCode: row.ProductCode,
					ProductName: row.ProductName,
				},
			})
		}

		out[i].TotalQuantity += row.Quantity
		out[i].TotalSales += row.SalesTax
		out[i].Rows++
	}

	Sort(out)
	return out
}

// Sort orders rows in place by branch, product code, then product name.
func Sort(rows []types.AggregatedRow) {
	slices.SortStableFunc(rows, func(a, b types.AggregatedRow) int {
		return cmp.Or(
			cmp.Compare(branch.Key(a.Branch), branch.Key(b.Branch)),
			cmp.Compare(a.Branch, b.Branch),
			cmp.Compare(a.ProductCode, b.ProductCode),
			cmp.Compare(a.ProductName, b.ProductName),
		)
	})
}

// =============================================================================
// ROLL-UPS
// =============================================================================

// ProductTotals sums aggregated rows across branches by product code.
// The name shown is the first one met in the sorted rows. Results are
// ordered by product code.
func ProductTotals(rows []types.AggregatedRow) []types.ProductTotal {
	index := make(map[string]int)
	out := make([]types.ProductTotal, 0)

	for _, row := range rows {
		i, ok := index[row.ProductCode]
		if !ok {
			i = len(out)
			index[row.ProductCode] = i
			out = append(out, types.ProductTotal{
				ProductCode: row.ProductCode,
				ProductName: row.ProductName,
			})
		}
		out[i].TotalQuantity += row.TotalQuantity
		out[i].TotalSales += row.TotalSales
	}

	slices.SortStableFunc(out, func(a, b types.ProductTotal) int {
		return cmp.Compare(a.ProductCode, b.ProductCode)
	})
	return out
}

// BranchTotals sums aggregated rows per branch, in the order branches first
// appear in rows. Products counts distinct product codes.
func BranchTotals(rows []types.AggregatedRow) []types.BranchTotal {
	index := make(map[string]int)
	codes := make(map[string]map[string]struct{})
	out := make([]types.BranchTotal, 0)

	for _, row := range rows {
		i, ok := index[row.Branch]
		if !ok {
			i = len(out)
			index[row.Branch] = i
			codes[row.Branch] = make(map[string]struct{})
			out = append(out, types.BranchTotal{Branch: row.Branch})
		}
		out[i].TotalQuantity += row.TotalQuantity
		out[i].TotalSales += row.TotalSales
		codes[row.Branch][row.ProductCode] = struct{}{}
	}

	for i := range out {
		out[i].Products = len(codes[out[i].Branch])
	}
	return out
}
