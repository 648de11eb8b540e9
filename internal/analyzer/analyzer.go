// =============================================================================
// Branch Sales Aggregator - Analyzer
// =============================================================================
//
// The analyzer runs the whole pipeline for one uploaded export. It is shared
// by the HTTP server and the process command.
//
// ANALYSIS PIPELINE:
//   1. Tabulate the upload (CSV or XLSX)
//   2. Check the header for every required column
//   3. Skip subtotal lines (when enabled), unless the shop is allowed
//   4. Normalize each row; bad rows are dropped and counted
//   5. Keep rows whose shop is on the allow-list
//   6. Aggregate by branch, product code and product name
//   7. Summarize
//
// CONCURRENCY:
//   An Analyzer holds only immutable settings and the allow-list. One
//   instance serves any number of concurrent uploads.
//
// =============================================================================

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/aggregator"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/branch"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/config"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/csvparser"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/exporter"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/logging"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/normalizer"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/validation"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/xlsxparser"
)

// cancelCheckInterval is how many rows are processed between context checks.
const cancelCheckInterval = 1024

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result is the outcome of analyzing one export.
type Result struct {
	// Rows is the aggregated table, ready for export.
	Rows []types.AggregatedRow `json:"-"`

	// Products are the per-product totals across all allowed branches.
	Products []types.ProductTotal `json:"products"`

	// Branches are the per-branch totals.
	Branches []types.BranchTotal `json:"branches"`

	// Stats summarizes the run.
	Stats types.SummaryStats `json:"summary"`

	// RowErrors holds the first MaxRowErrors dropped rows. Stats.DroppedRows
	// is the full count.
	RowErrors []*validation.InvalidRowError `json:"row_errors"`

	// Warnings are non-fatal conditions, such as an empty result.
	Warnings []types.Warning `json:"warnings"`

	// Duration is the time spent in the pipeline.
	Duration time.Duration `json:"-"`
}

// =============================================================================
// ANALYZER STRUCTURE
// =============================================================================

// Options are the pipeline settings taken from configuration.
type Options struct {
	// CSV controls decoding and tabulation of CSV uploads.
	CSV config.CSVSettings

	// SkipSummaryRows excludes subtotal lines before normalization.
	SkipSummaryRows bool

	// MaxRowErrors caps Result.RowErrors. Zero keeps none.
	MaxRowErrors int
}

// OptionsFromConfig extracts analyzer options from the main configuration.
func OptionsFromConfig(cfg *config.MainConfig) Options {
	return Options{
		CSV:             cfg.CSV,
		SkipSummaryRows: cfg.CSV.SkipSummary(),
		MaxRowErrors:    cfg.CSV.RowErrorLimit(),
	}
}

// Analyzer aggregates sales exports for a fixed set of branches.
type Analyzer struct {
	allow  branch.AllowList
	opts   Options
	logger *slog.Logger
}

// New creates an Analyzer.
//
// PARAMETERS:
//   - allow: The branches whose sales are reported.
//   - opts: Pipeline settings.
//   - logger: Destination for diagnostics. nil discards them.
func New(allow branch.AllowList, opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Analyzer{
		allow:  allow,
		opts:   opts,
		logger: logger.With(slog.String("component", "analyzer")),
	}
}

// AllowList returns the branches this analyzer reports on.
func (a *Analyzer) AllowList() branch.AllowList {
	return a.allow
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// Analyze runs the pipeline over a CSV export.
//
// RETURNS:
//   - The result, possibly with an empty table and a warning.
//   - A *validation.SchemaError if required columns are missing, or a
//     wrapped error if the input cannot be read.
func (a *Analyzer) Analyze(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := csvparser.Parse(r, a.opts.CSV)
	if err != nil {
		return nil, a.tableError(err)
	}
	return a.AnalyzeTable(ctx, data)
}

// AnalyzeWorkbook runs the pipeline over the first sheet of an XLSX export.
func (a *Analyzer) AnalyzeWorkbook(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := xlsxparser.Parse(r)
	if err != nil {
		return nil, a.tableError(err)
	}
	return a.AnalyzeTable(ctx, data)
}

// AnalyzeFile picks the CSV or XLSX reader from the file name.
func (a *Analyzer) AnalyzeFile(ctx context.Context, name string, r io.Reader) (*Result, error) {
	if xlsxparser.IsWorkbook(name) {
		return a.AnalyzeWorkbook(ctx, r)
	}
	return a.Analyze(ctx, r)
}

// tableError turns an input without a header into a schema error that names
// every required column.
func (a *Analyzer) tableError(err error) error {
	if errors.Is(err, csvparser.ErrEmptyInput) {
		missing := make([]string, len(types.RequiredColumns))
		copy(missing, types.RequiredColumns)
		return &validation.SchemaError{Missing: missing}
	}
	return fmt.Errorf("failed to read input: %w", err)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// AnalyzeTable runs the pipeline over an already tabulated export.
func (a *Analyzer) AnalyzeTable(ctx context.Context, data *csvparser.CSVData) (*Result, error) {
	start := time.Now()

	// =========================================================================
	// STEP 1: SCHEMA
	// =========================================================================

	cols, err := validation.ResolveColumns(data.Headers)
	if err != nil {
		a.logger.WarnContext(ctx, "rejected input", slog.String("error", err.Error()))
		return nil, err
	}

	// =========================================================================
	// STEP 2: NORMALIZE AND FILTER
	// =========================================================================

	var counts exporter.Counts
	result := &Result{
		RowErrors: make([]*validation.InvalidRowError, 0),
		Warnings:  make([]types.Warning, 0),
	}
	kept := make([]types.NormalizedRow, 0, len(data.Records))

	for i, record := range data.Records {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := 0
		if i < len(data.Lines) {
			line = data.Lines[i]
		}
		raw := cols.Extract(record, line)
		counts.Total++

		// A configured branch named like "Total Care" is a shop, not a subtotal.
		if a.opts.SkipSummaryRows && normalizer.IsSummaryRow(raw.Shop) && !a.allow.Allows(raw.Shop) {
			counts.Filtered++
			counts.SummarySkipped++
			continue
		}

		row, err := normalizer.Normalize(raw)
		if err != nil {
			counts.Dropped++
			var rowErr *validation.InvalidRowError
			if errors.As(err, &rowErr) && len(result.RowErrors) < a.opts.MaxRowErrors {
				result.RowErrors = append(result.RowErrors, rowErr)
			}
			a.logger.DebugContext(ctx, "dropped row", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}

		if !a.allow.Allows(row.Shop) {
			counts.Filtered++
			continue
		}

		kept = append(kept, row)
	}

	// =========================================================================
	// STEP 3: AGGREGATE AND SUMMARIZE
	// =========================================================================

	result.Rows = aggregator.AggregateBy(kept, a.allow.Normalize)
	result.Products = aggregator.ProductTotals(result.Rows)
	result.Branches = aggregator.BranchTotals(result.Rows)
	result.Stats = exporter.Summarize(counts, result.Rows)

	if len(result.Rows) == 0 {
		result.Warnings = append(result.Warnings, types.WarningEmptyResult)
	}

	result.Duration = time.Since(start)

	a.logger.InfoContext(ctx, "analysis complete",
		slog.Int("total_rows", result.Stats.TotalRows),
		slog.Int("dropped_rows", result.Stats.DroppedRows),
		slog.Int("filtered_rows", result.Stats.FilteredRows),
		slog.Int("output_rows", result.Stats.OutputRows),
		slog.Duration("duration", result.Duration))

	return result, nil
}
