// =============================================================================
// Branch Sales Aggregator - Process Command
// =============================================================================
//
// This file defines the 'process' command, which aggregates every sales
// export found in the input directory. Each file is analyzed on its own;
// totals are never combined across files.
//
// COMMAND USAGE:
//   salesagg process [flags]
//
// FLAGS:
//   --file          : Process only this file instead of scanning the input dir
//   --dry-run       : Analyze and report without writing or archiving anything
//   --format        : Report format, csv or xlsx (default from config)
//   --metrics-file  : Write Prometheus metrics for the run to this file
//
// PROCESSING PIPELINE:
//   1. Load configuration
//   2. Discover .csv and .xlsx files in the input directory
//   3. For each file (concurrently, at most max_concurrency at a time):
//      a. Parse and validate the header
//      b. Normalize, filter and aggregate the rows
//      c. Render the report
//      d. Write it to the output directory
//      e. Archive the input
//   4. Write the error log and the processing summary
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/analyzer"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/exporter"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/metrics"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/validation"
	"github.com/ginjaninja78/branch-sales-aggregator/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// dryRun analyzes files without writing reports or archiving inputs.
	dryRun bool

	// inputFile limits the run to a single file.
	inputFile string

	// outputFormat overrides export.format from the config.
	outputFormat string

	// metricsFile receives the run's metrics in the text exposition format.
	metricsFile string
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Aggregate the sales exports in the input directory",
	Long: `The process command scans the input directory for CSV and XLSX exports and
writes one per-branch, per-product report for each of them.

Files are processed concurrently. A file with a bad header fails on its own;
the other files are still processed.

On success:
  - The report is placed in the output directory
  - The input is moved to the input archive (when configured)

On error:
  - The failure is listed in the processing summary
  - The input stays in the input directory

Rows that could not be parsed are written to an error log in the output
directory.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Analyze files without writing reports or archiving inputs",
	)

	processCmd.Flags().StringVar(
		&inputFile,
		"file",
		"",
		"Process only this file",
	)

	processCmd.Flags().StringVar(
		&outputFormat,
		"format",
		"",
		"Report format: csv or xlsx (default from config)",
	)

	processCmd.Flags().StringVar(
		&metricsFile,
		"metrics-file",
		"",
		"Write Prometheus metrics for this run to the given file",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	format := outputFormat
	if format == "" {
		format = a.cfg.Export.Format
	}
	format = strings.ToLower(format)
	if format != "csv" && format != "xlsx" {
		return fmt.Errorf("unknown report format %q (want csv or xlsx)", format)
	}

	fm := utils.NewFileManager(a.cfg.Paths.InputDir, a.cfg.Paths.OutputDir, a.cfg.Paths.InputArchiveDir)
	fm.UseTimestampSubdirs = a.cfg.Paths.ArchiveByDate

	var files []string
	if inputFile != "" {
		files = []string{inputFile}
	} else {
		files, err = fm.DiscoverInputFiles()
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintln(out, "No CSV or XLSX files found in the input directory.")
		return nil
	}

	if !dryRun {
		if err := fm.EnsureDirectories(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	b := &batch{
		analyzer:    a.newAnalyzer(),
		files:       fm,
		exportOpts:  exporter.OptionsFromConfig(a.cfg.Export),
		nameFormat:  a.cfg.Export.OutputNameFormat,
		format:      format,
		dryRun:      dryRun,
		concurrency: a.cfg.MaxConcurrency,
		metrics:     recorder,
		logger:      a.logger,
	}

	fmt.Fprintf(out, "Processing %d file(s)...\n", len(files))
	summary, rowErrors := b.run(ctx, files)
	printSummary(out, summary, dryRun)

	if !dryRun {
		if path, err := utils.WriteErrorLog(rowErrors, a.cfg.Paths.OutputDir); err != nil {
			a.logger.Error("failed to write error log", slog.String("error", err.Error()))
		} else if path != "" {
			fmt.Fprintf(out, "Row errors written to %s\n", path)
		}
		if path, err := utils.WriteSummaryLog(summary, a.cfg.Paths.OutputDir); err != nil {
			a.logger.Error("failed to write summary", slog.String("error", err.Error()))
		} else {
			fmt.Fprintf(out, "Summary written to %s\n", path)
		}
	}

	if metricsFile != "" {
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// =============================================================================
// BATCH
// =============================================================================

// batch holds what every file of one run shares.
type batch struct {
	analyzer    *analyzer.Analyzer
	files       *utils.FileManager
	exportOpts  exporter.Options
	nameFormat  string
	format      string
	dryRun      bool
	concurrency int
	metrics     *metrics.Recorder
	logger      *slog.Logger
}

// fileResult is the outcome of one file.
type fileResult struct {
	path        string
	outputPath  string
	archivePath string
	result      *analyzer.Result
	err         error
	duration    time.Duration
}

// run processes files concurrently and collects a summary plus one error
// log entry per dropped row or failed file. The summary lists files in
// input order.
func (b *batch) run(ctx context.Context, files []string) (utils.ProcessingSummary, []utils.ErrorLogEntry) {
	summary := utils.ProcessingSummary{StartTime: time.Now(), TotalFiles: len(files)}

	limit := b.concurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	targets := b.outputNames(files)

	var wg sync.WaitGroup
	results := make(chan fileResult, len(files))

	for _, file := range files {
		wg.Add(1)
		go func(path string, target outputName) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results <- b.processFile(ctx, path, target)
		}(file, targets[file])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	byPath := make(map[string]fileResult, len(files))
	for res := range results {
		byPath[res.path] = res
	}

	var entries []utils.ErrorLogEntry
	for _, file := range files {
		res := byPath[file]
		name := filepath.Base(res.path)

		if res.err != nil {
			summary.FailedFiles++
			errType := errorType(res.err)
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    res.path,
				ErrorMessage: res.err.Error(),
				ErrorType:    errType,
			})
			entries = append(entries, utils.ErrorLogEntry{
				FileName:     name,
				ErrorType:    errType,
				ErrorMessage: res.err.Error(),
			})
			continue
		}

		stats := res.result.Stats
		summary.SuccessfulFiles++
		summary.TotalRows += stats.TotalRows
		summary.DroppedRows += stats.DroppedRows
		summary.FilteredRows += stats.FilteredRows

		warnings := make([]string, 0, len(res.result.Warnings))
		for _, w := range res.result.Warnings {
			warnings = append(warnings, string(w))
		}
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:   res.path,
			OutputFile:  res.outputPath,
			ArchivePath: res.archivePath,
			Rows:        stats.TotalRows,
			OutputRows:  stats.OutputRows,
			TotalSales:  stats.GrandTotalSales,
			ProcessTime: res.duration,
			Warnings:    warnings,
		})

		for _, rowErr := range res.result.RowErrors {
			entries = append(entries, utils.ErrorLogEntry{
				FileName:     name,
				ErrorType:    "invalid_row",
				ErrorMessage: rowErr.Reason,
				RowNumber:    rowErr.Line,
				FieldName:    rowErr.Field,
				FieldValue:   rowErr.Value,
			})
		}
	}

	summary.EndTime = time.Now()
	return summary, entries
}

// errOutputNameTaken marks a file whose report name another input of the
// same run already claimed.
var errOutputNameTaken = errors.New("report name already used")

// outputName is the report file name planned for one input.
type outputName struct {
	name string
	err  error
}

// outputNames plans report names for a whole run before any file is
// processed. Inputs sharing a stem ("march.csv", "march.xlsx") get their
// source extension added to {original}. A name that still collides fails
// every input after the first that claimed it.
func (b *batch) outputNames(files []string) map[string]outputName {
	stems := make(map[string]int, len(files))
	for _, file := range files {
		stems[strings.ToLower(fileStem(file))]++
	}

	claimed := make(map[string]string, len(files))
	out := make(map[string]outputName, len(files))
	for _, file := range files {
		original := fileStem(file)
		if stems[strings.ToLower(original)] > 1 {
			original += "_" + strings.TrimPrefix(strings.ToLower(filepath.Ext(file)), ".")
		}

		name := utils.GenerateOutputFileName(b.nameFormat, map[string]string{"original": original}, "."+b.format)
		key := strings.ToLower(name)
		if other, taken := claimed[key]; taken {
			out[file] = outputName{
				name: name,
				err:  fmt.Errorf("%w: %s is the report of %s", errOutputNameTaken, name, filepath.Base(other)),
			}
			continue
		}
		claimed[key] = file
		out[file] = outputName{name: name}
	}
	return out
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// processFile analyzes one file, writes its report and archives it.
func (b *batch) processFile(ctx context.Context, path string, target outputName) fileResult {
	start := time.Now()
	res := fileResult{path: path}
	logger := b.logger.With(slog.String("file", filepath.Base(path)))

	if target.err != nil {
		res.err = target.err
		b.metrics.ObserveFailure(metricsOutcome(target.err))
		logger.ErrorContext(ctx, "file skipped", slog.String("error", target.err.Error()))
		return res
	}
	name := target.name

	result, err := b.analyze(ctx, path)
	if err != nil {
		res.err = err
		res.duration = time.Since(start)
		b.metrics.ObserveFailure(metricsOutcome(err))
		logger.ErrorContext(ctx, "file failed", slog.String("error", err.Error()))
		return res
	}
	res.result = result
	b.metrics.ObserveResult(result.Stats, result.Duration)

	data, err := b.render(result)
	if err != nil {
		res.err = fmt.Errorf("failed to render report: %w", err)
		res.duration = time.Since(start)
		return res
	}

	if b.dryRun {
		res.outputPath = name
		res.duration = time.Since(start)
		return res
	}

	res.outputPath, err = b.files.WriteOutput(name, data)
	if err != nil {
		res.err = err
		res.duration = time.Since(start)
		return res
	}

	// The report is already written, so a failed archive only warns.
	res.archivePath, err = b.files.ArchiveInputFile(path)
	if err != nil {
		logger.WarnContext(ctx, "failed to archive input", slog.String("error", err.Error()))
	}

	res.duration = time.Since(start)
	logger.InfoContext(ctx, "file processed",
		slog.String("output", res.outputPath),
		slog.Int("output_rows", result.Stats.OutputRows),
		slog.Duration("duration", res.duration))
	return res
}

func (b *batch) analyze(ctx context.Context, path string) (*analyzer.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return b.analyzer.AnalyzeFile(ctx, filepath.Base(path), f)
}

func (b *batch) render(result *analyzer.Result) ([]byte, error) {
	if b.format == "xlsx" {
		return exporter.ExportXLSX(result.Rows, result.Products, result.Stats, b.exportOpts)
	}
	return exporter.Export(result.Rows, b.exportOpts)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func errorType(err error) string {
	var schemaErr *validation.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, errOutputNameTaken):
		return "output"
	default:
		return "input"
	}
}

func metricsOutcome(err error) string {
	var schemaErr *validation.SchemaError
	if errors.As(err, &schemaErr) {
		return metrics.OutcomeSchemaError
	}
	return metrics.OutcomeInputError
}

func printSummary(out io.Writer, summary utils.ProcessingSummary, dry bool) {
	for _, pf := range summary.ProcessedFiles {
		target := pf.OutputFile
		if dry {
			target += " (dry run)"
		}
		fmt.Fprintf(out, "  ✓ %s -> %s (%d rows, %d report lines)\n",
			filepath.Base(pf.InputFile), target, pf.Rows, pf.OutputRows)
		for _, w := range pf.Warnings {
			fmt.Fprintf(out, "    ! %s\n", w)
		}
	}
	for _, ff := range summary.FailedFilesList {
		fmt.Fprintf(out, "  ✗ %s: %s\n", filepath.Base(ff.InputFile), ff.ErrorMessage)
	}

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Rows read:       %d\n", summary.TotalRows)
	fmt.Fprintf(out, "Rows dropped:    %d\n", summary.DroppedRows)
	fmt.Fprintf(out, "Rows filtered:   %d\n", summary.FilteredRows)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))
}
