package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/analyzer"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/branch"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/config"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/exporter"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/logging"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/metrics"
	"github.com/ginjaninja78/branch-sales-aggregator/pkg/utils"
)

const goodExport = "Shop,Receipt,Customer Name,Product Code,Product Name,Retail Price,Quantity,Sales + Tax\n" +
	"AWAISIA,R1,Ali,P1,Widget,10,2,20\n" +
	"AWAISIA,R2,Bo,P1,Widget,10,abc,0\n" +
	"DHA,R3,Cy,P1,Widget,10,1,10\n"

type batchDirs struct {
	in, out, archive string
}

func newTestBatch(t *testing.T, format string, dry bool) (*batch, batchDirs) {
	t.Helper()
	root := t.TempDir()
	dirs := batchDirs{
		in:      filepath.Join(root, "input"),
		out:     filepath.Join(root, "output"),
		archive: filepath.Join(root, "archive"),
	}
	require.NoError(t, os.MkdirAll(dirs.in, 0755))

	fm := utils.NewFileManager(dirs.in, dirs.out, dirs.archive)
	require.NoError(t, fm.EnsureDirectories())

	an := analyzer.New(branch.NewAllowList([]string{"AWAISIA"}), analyzer.Options{
		CSV:             config.CSVSettings{Delimiter: ",", Encoding: "utf-8"},
		SkipSummaryRows: true,
		MaxRowErrors:    50,
	}, nil)

	return &batch{
		analyzer:    an,
		files:       fm,
		exportOpts:  exporter.DefaultOptions(),
		nameFormat:  "{original}_by_product",
		format:      format,
		dryRun:      dry,
		concurrency: 2,
		metrics:     metrics.NewRecorder(),
		logger:      logging.Discard(),
	}, dirs
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestBatchRun_WritesReportAndArchives(t *testing.T) {
	b, dirs := newTestBatch(t, "csv", false)
	good := writeInput(t, dirs.in, "march.csv", goodExport)
	bad := writeInput(t, dirs.in, "broken.csv", "Shop,Quantity\nAWAISIA,1\n")

	summary, entries := b.run(context.Background(), []string{bad, good})

	assert.Equal(t, 2, summary.TotalFiles)
	assert.Equal(t, 1, summary.SuccessfulFiles)
	assert.Equal(t, 1, summary.FailedFiles)
	assert.Equal(t, 3, summary.TotalRows)
	assert.Equal(t, 1, summary.DroppedRows)
	assert.Equal(t, 1, summary.FilteredRows)

	require.Len(t, summary.FailedFilesList, 1)
	assert.Equal(t, bad, summary.FailedFilesList[0].InputFile)
	assert.Equal(t, "schema", summary.FailedFilesList[0].ErrorType)
	assert.True(t, utils.FileExists(bad), "failed input stays in place")

	require.Len(t, summary.ProcessedFiles, 1)
	pf := summary.ProcessedFiles[0]
	assert.Equal(t, filepath.Join(dirs.out, "march_by_product.csv"), pf.OutputFile)
	assert.Equal(t, filepath.Join(dirs.archive, "march.csv"), pf.ArchivePath)
	assert.False(t, utils.FileExists(good))
	assert.InDelta(t, 20.0, pf.TotalSales, 1e-9)

	report, err := os.ReadFile(pf.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(report), "AWAISIA,P1,Widget,2,20.00")
	assert.NotContains(t, string(report), "DHA")

	// One entry for the failed file, one for the dropped row.
	require.Len(t, entries, 2)
	assert.Equal(t, "broken.csv", entries[0].FileName)
	assert.Equal(t, "invalid_row", entries[1].ErrorType)
	assert.Equal(t, 3, entries[1].RowNumber)
	assert.Equal(t, "Quantity", entries[1].FieldName)
	assert.Equal(t, "abc", entries[1].FieldValue)

	// One success and one schema_error series.
	count, err := testutil.GatherAndCount(b.metrics.Registry(), "salesagg_analyses_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBatchRun_DryRunWritesNothing(t *testing.T) {
	b, dirs := newTestBatch(t, "xlsx", true)
	good := writeInput(t, dirs.in, "march.csv", goodExport)

	summary, _ := b.run(context.Background(), []string{good})

	require.Len(t, summary.ProcessedFiles, 1)
	assert.Equal(t, "march_by_product.xlsx", summary.ProcessedFiles[0].OutputFile)
	assert.True(t, utils.FileExists(good))

	entries, err := os.ReadDir(dirs.out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBatchRun_MissingFile(t *testing.T) {
	b, dirs := newTestBatch(t, "csv", false)

	summary, entries := b.run(context.Background(), []string{filepath.Join(dirs.in, "nope.csv")})

	assert.Equal(t, 1, summary.FailedFiles)
	assert.Equal(t, "input", summary.FailedFilesList[0].ErrorType)
	require.Len(t, entries, 1)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, utils.ProcessingSummary{
		TotalFiles:      1,
		SuccessfulFiles: 1,
		ProcessedFiles: []utils.ProcessedFileInfo{{
			InputFile:  "/in/march.csv",
			OutputFile: "march_by_product.csv",
			Rows:       3,
			OutputRows: 1,
			Warnings:   []string{"careful"},
		}},
	}, true)

	out := buf.String()
	assert.Contains(t, out, "march.csv -> march_by_product.csv (dry run) (3 rows, 1 report lines)")
	assert.Contains(t, out, "! careful")
	assert.Contains(t, out, "Successful:      1")
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Parse([]byte("allowed_branches: [AWAISIA]\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	good := writeInput(t, dir, "march.csv", goodExport)
	require.NoError(t, checkFile(context.Background(), &buf, good, cfg))
	assert.Contains(t, buf.String(), "Header OK: march.csv (3 data row(s), 1 dropped, 1 filtered, 1 report line(s))")
	assert.Contains(t, buf.String(), "1 invalid row(s):")
	assert.Contains(t, buf.String(), `1. line 3: Quantity "abc": value is not a number`)

	buf.Reset()
	clean := writeInput(t, dir, "clean.csv", "Shop,Receipt,Customer Name,Product Code,Product Name,Retail Price,Quantity,Sales + Tax\n"+
		"AWAISIA,R1,Ali,P1,Widget,10,2,20\n")
	require.NoError(t, checkFile(context.Background(), &buf, clean, cfg))
	assert.Contains(t, buf.String(), "No invalid rows.\n")

	bad := writeInput(t, dir, "bad.csv", "Shop,Quantity\n")
	err = checkFile(context.Background(), &buf, bad, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Sales + Tax"`)

	empty := writeInput(t, dir, "empty.csv", "")
	err = checkFile(context.Background(), &buf, empty, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Shop"`)
}

func TestNewApp_VerboseForcesDebug(t *testing.T) {
	cfg, err := config.Parse([]byte("allowed_branches: [AWAISIA]\n"))
	require.NoError(t, err)

	a, err := newApp(cfg, true)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "debug", a.cfg.Logging.Level)
	assert.Equal(t, []string{"AWAISIA"}, a.newAnalyzer().AllowList().Entries())
}

func TestBatchRun_SameStemGetsDistinctReports(t *testing.T) {
	b, dirs := newTestBatch(t, "csv", false)
	csvInput := writeInput(t, dirs.in, "march.csv", goodExport)
	xlsxInput := filepath.Join(dirs.in, "march.xlsx")
	writeWorkbook(t, xlsxInput, [][]interface{}{
		{"Shop", "Receipt", "Customer Name", "Product Code", "Product Name", "Retail Price", "Quantity", "Sales + Tax"},
		{"AWAISIA", "R9", "Zed", "P7", "Gadget", "4", "5", "20"},
	})

	summary, _ := b.run(context.Background(), []string{csvInput, xlsxInput})

	require.Equal(t, 2, summary.SuccessfulFiles)
	assert.Equal(t, filepath.Join(dirs.out, "march_csv_by_product.csv"), summary.ProcessedFiles[0].OutputFile)
	assert.Equal(t, filepath.Join(dirs.out, "march_xlsx_by_product.csv"), summary.ProcessedFiles[1].OutputFile)

	fromCSV, err := os.ReadFile(summary.ProcessedFiles[0].OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(fromCSV), "AWAISIA,P1,Widget,2,20.00")

	fromXLSX, err := os.ReadFile(summary.ProcessedFiles[1].OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(fromXLSX), "AWAISIA,P7,Gadget,5,20.00")

	entries, err := os.ReadDir(dirs.out)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBatchRun_FixedReportNameFailsLaterFiles(t *testing.T) {
	b, dirs := newTestBatch(t, "csv", false)
	b.nameFormat = "report"
	first := writeInput(t, dirs.in, "march.csv", goodExport)
	second := writeInput(t, dirs.in, "april.csv", goodExport)

	summary, _ := b.run(context.Background(), []string{first, second})

	assert.Equal(t, 1, summary.SuccessfulFiles)
	require.Equal(t, 1, summary.FailedFiles)
	assert.Equal(t, second, summary.FailedFilesList[0].InputFile)
	assert.Equal(t, "output", summary.FailedFilesList[0].ErrorType)
	assert.Contains(t, summary.FailedFilesList[0].ErrorMessage, "march.csv")
	assert.True(t, utils.FileExists(second), "skipped input stays in place")
}

func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		values := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	require.NoError(t, f.SaveAs(path))
}
