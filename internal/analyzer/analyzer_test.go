package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/branch"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/config"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/exporter"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/validation"
)

const header = "Shop,Receipt,Customer Name,Product Code,Product Name,Retail Price,Quantity,Sales + Tax\n"

var allowed = []string{"AWAISIA", "BAHRIA TOWN", "IQBAL TOWN", "JOHAR TOWN PHARMACY"}

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	return New(branch.NewAllowList(allowed), Options{
		CSV:             config.CSVSettings{Delimiter: ",", Encoding: "utf-8"},
		SkipSummaryRows: true,
		MaxRowErrors:    50,
	}, nil)
}

func analyze(t *testing.T, a *Analyzer, input string) *Result {
	t.Helper()
	res, err := a.Analyze(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	return res
}

func assertCounting(t *testing.T, s types.SummaryStats) {
	t.Helper()
	assert.Equal(t, s.TotalRows, s.AggregatedRows+s.DroppedRows+s.FilteredRows,
		"aggregated %d + dropped %d + filtered %d != total %d",
		s.AggregatedRows, s.DroppedRows, s.FilteredRows, s.TotalRows)
}

func TestAnalyze_BahriaTownWidget(t *testing.T) {
	res := analyze(t, newAnalyzer(t), header+
		"Bahria Town,R1,Ali,P100,Widget,10.00,3,30.00\n"+
		"Bahria Town,R2,Sara,P100,Widget,10.00,5,50.00\n")

	out, err := exporter.Export(res.Rows, exporter.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t,
		"Shop,Product Code,Product Name,Total Quantity,Total Sales\n"+
			"Bahria Town,P100,Widget,8,80.00\n",
		string(out))
	assert.Empty(t, res.Warnings)
	assertCounting(t, res.Stats)
}

func TestAnalyze_TrailingSpaceMatchesAndUnknownBranchFiltered(t *testing.T) {
	res := analyze(t, newAnalyzer(t), header+
		"Awaisia ,R1,Ali,P1,Soap,5,2,10\n"+
		"Downtown,R2,Sara,P1,Soap,5,4,20\n")

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Awaisia", res.Rows[0].Branch)
	assert.Equal(t, 1, res.Stats.FilteredRows)
	assert.Equal(t, 0, res.Stats.DroppedRows)
	for _, r := range res.Rows {
		assert.NotEqual(t, "Downtown", r.Branch)
	}
	assertCounting(t, res.Stats)
}

func TestAnalyze_InvalidQuantityDroppedExactlyOnce(t *testing.T) {
	a := newAnalyzer(t)
	base := header + "AWAISIA,R1,Ali,P1,Soap,5,2,10\n"

	before := analyze(t, a, base)
	after := analyze(t, a, base+"AWAISIA,R2,Sara,P2,Gel,5,abc,10\n")

	assert.Equal(t, before.Stats.DroppedRows+1, after.Stats.DroppedRows)
	assert.Equal(t, before.Rows, after.Rows)
	for _, r := range after.Rows {
		assert.NotEqual(t, "P2", r.ProductCode)
	}

	require.Len(t, after.RowErrors, 1)
	assert.Equal(t, 3, after.RowErrors[0].Line)
	assert.Equal(t, types.ColumnQuantity, after.RowErrors[0].Field)
	assert.Equal(t, "abc", after.RowErrors[0].Value)
	assertCounting(t, after.Stats)
}

func TestAnalyze_Idempotent(t *testing.T) {
	input := header +
		"IQBAL TOWN,R1,Ali,P2,Gel,3.33,1,3.33\n" +
		"AWAISIA,R2,Sara,P1,Soap,1.10,3,3.30\n" +
		"awaisia,R3,Ali,P1,Soap,1.10,1,1.10\n" +
		"BAHRIA TOWN,R4,Omar,P9,\"Tea, green\",2.5,-1,-2.50\n"

	a := newAnalyzer(t)
	first, err := exporter.Export(analyze(t, a, input).Rows, exporter.DefaultOptions())
	require.NoError(t, err)
	second, err := exporter.Export(analyze(t, a, input).Rows, exporter.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyze_FilterInvariant(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	shops := []string{"AWAISIA", "Downtown", " iqbal town", "MODEL TOWN", "Bahria town ", "JOHAR TOWN"}
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%s,R%d,C,P%d,Item,1,1,1\n", shops[i%len(shops)], i, i%4)
	}

	a := newAnalyzer(t)
	res := analyze(t, a, b.String())

	list := branch.NewAllowList(allowed)
	for _, r := range res.Rows {
		assert.True(t, list.Allows(r.Branch), "branch %q is not allowed", r.Branch)
	}
	assert.Equal(t, 30, res.Stats.FilteredRows)
	assertCounting(t, res.Stats)
}

func TestAnalyze_SumsMatchIndependentReconstruction(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	want := map[types.GroupKey]float64{}
	shops := []string{"AWAISIA", "IQBAL TOWN"}
	for i := 0; i < 200; i++ {
		shop := shops[i%2]
		code := fmt.Sprintf("P%d", i%7)
		qty := (i % 5) - 1
		fmt.Fprintf(&b, "%s,R%d,C,%s,Item %s,2,%d,%d\n", shop, i, code, code, qty, qty*2)
		want[types.GroupKey{Branch: shop, ProductCode: code, ProductName: "Item " + code}] += float64(qty)
	}

	res := analyze(t, newAnalyzer(t), b.String())
	require.Len(t, res.Rows, len(want))
	for _, r := range res.Rows {
		assert.Equal(t, want[r.GroupKey], r.TotalQuantity, "group %+v", r.GroupKey)
	}
}

func TestAnalyze_SummaryRowsSkipped(t *testing.T) {
	res := analyze(t, newAnalyzer(t), header+
		"AWAISIA,R1,Ali,P1,Soap,5,2,10\n"+
		"AWAISIA Total,,,,,,2,10\n"+
		",,,,,,2,10\n"+
		"Grand Total,,,,,,2,10\n")

	assert.Equal(t, 4, res.Stats.TotalRows)
	assert.Equal(t, 3, res.Stats.FilteredRows)
	assert.Equal(t, 3, res.Stats.SummaryRowsSkipped)
	assert.Equal(t, 0, res.Stats.DroppedRows)
	assertCounting(t, res.Stats)
}

func TestAnalyze_SummaryRowsKeptWhenDisabled(t *testing.T) {
	a := New(branch.NewAllowList(allowed), Options{
		CSV:          config.CSVSettings{Delimiter: ",", Encoding: "utf-8"},
		MaxRowErrors: 50,
	}, nil)

	res := analyze(t, a, header+"Grand Total,,,,,,2,10\n")
	assert.Equal(t, 0, res.Stats.SummaryRowsSkipped)
	assert.Equal(t, 1, res.Stats.DroppedRows)
	assertCounting(t, res.Stats)
}

func TestAnalyze_EmptyResultWarning(t *testing.T) {
	res := analyze(t, newAnalyzer(t), header+"Downtown,R1,Ali,P1,Soap,5,2,10\n")

	assert.Empty(t, res.Rows)
	assert.Equal(t, []types.Warning{types.WarningEmptyResult}, res.Warnings)

	out, err := exporter.Export(res.Rows, exporter.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "Shop,Product Code,Product Name,Total Quantity,Total Sales\n", string(out))
}

func TestAnalyze_HeaderOnly(t *testing.T) {
	res := analyze(t, newAnalyzer(t), header)
	assert.Equal(t, 0, res.Stats.TotalRows)
	assert.Contains(t, res.Warnings, types.WarningEmptyResult)
}

func TestAnalyze_MissingColumn(t *testing.T) {
	_, err := newAnalyzer(t).Analyze(context.Background(),
		strings.NewReader("Shop,Receipt,Customer Name,Product Code,Product Name,Retail Price,Sales + Tax\nAWAISIA,R1,A,P1,S,1,1\n"))

	var schemaErr *validation.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{types.ColumnQuantity}, schemaErr.Missing)
}

func TestAnalyze_EmptyInputIsSchemaError(t *testing.T) {
	_, err := newAnalyzer(t).Analyze(context.Background(), strings.NewReader(""))

	var schemaErr *validation.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, types.RequiredColumns, schemaErr.Missing)
}

func TestAnalyze_RowErrorsCapped(t *testing.T) {
	a := New(branch.NewAllowList(allowed), Options{
		CSV:          config.CSVSettings{Delimiter: ",", Encoding: "utf-8"},
		MaxRowErrors: 2,
	}, nil)

	res := analyze(t, a, header+strings.Repeat("AWAISIA,R,C,P1,Soap,1,x,1\n", 5))
	assert.Len(t, res.RowErrors, 2)
	assert.Equal(t, 5, res.Stats.DroppedRows)
}

func TestAnalyze_DroppedRowFromDisallowedBranchCountsAsDropped(t *testing.T) {
	res := analyze(t, newAnalyzer(t), header+"Downtown,R1,Ali,P1,Soap,5,abc,10\n")
	assert.Equal(t, 1, res.Stats.DroppedRows)
	assert.Equal(t, 0, res.Stats.FilteredRows)
}

func TestAnalyze_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAnalyzer(t).Analyze(ctx, strings.NewReader(header+"AWAISIA,R1,Ali,P1,Soap,5,2,10\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeFile_Workbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]interface{}{
		{"Shop", "Receipt", "Customer Name", "Product Code", "Product Name", "Retail Price", "Quantity", "Sales + Tax"},
		{"Bahria Town", "R1", "Ali", "P100", "Widget", "10.00", "3", "30.00"},
		{"Bahria Town", "R2", "Sara", "P100", "Widget", "10.00", "5", "50.00"},
	}
	for i, row := range rows {
		values := row
		require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+1), &values))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	res, err := newAnalyzer(t).AnalyzeFile(context.Background(), "sales.xlsx", &buf)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 8.0, res.Rows[0].TotalQuantity)
	assert.Equal(t, 80.0, res.Rows[0].TotalSales)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("allowed_branches: [AWAISIA]\n"))
	require.NoError(t, err)

	opts := OptionsFromConfig(cfg)
	assert.True(t, opts.SkipSummaryRows)
	assert.Equal(t, 50, opts.MaxRowErrors)
	assert.Equal(t, ",", opts.CSV.Delimiter)

	cfg, err = config.Parse([]byte("allowed_branches: [AWAISIA]\ncsv:\n  max_row_errors: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, OptionsFromConfig(cfg).MaxRowErrors)
}

func TestAnalyze_AllowedBranchNamedTotalIsKept(t *testing.T) {
	a := New(branch.NewAllowList([]string{"TOTAL CARE PHARMACY"}), Options{
		CSV:             config.CSVSettings{Delimiter: ",", Encoding: "utf-8"},
		SkipSummaryRows: true,
		MaxRowErrors:    50,
	}, nil)

	res := analyze(t, a, header+
		"Total Care Pharmacy,R1,Ali,P1,Soap,5,2,10\n"+
		"Total Care Pharmacy Total,,,,,,2,10\n")

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Total Care Pharmacy", res.Rows[0].Branch)
	assert.Equal(t, 2.0, res.Rows[0].TotalQuantity)
	assert.Equal(t, 1, res.Stats.SummaryRowsSkipped)
	assert.Empty(t, res.Warnings)
	assertCounting(t, res.Stats)
}

func TestAnalyze_ConcurrentUseMatchesSequential(t *testing.T) {
	a := newAnalyzer(t)
	shops := []string{"AWAISIA", "Bahria Town", "iqbal town ", "Downtown"}

	inputs := make([]string, 16)
	want := make([][]byte, len(inputs))
	for i := range inputs {
		var b strings.Builder
		b.WriteString(header)
		for j := 0; j <= i; j++ {
			fmt.Fprintf(&b, "%s,R%d,C,P%d,Item %d,5,%d,%d.25\n", shops[(i+j)%len(shops)], j, j%3, j%3, i+1, j*10)
		}
		if i%4 == 0 {
			b.WriteString("AWAISIA,RX,C,P9,Bad,5,abc,1\n")
		}
		inputs[i] = b.String()

		out, err := exporter.Export(analyze(t, a, inputs[i]).Rows, exporter.DefaultOptions())
		require.NoError(t, err)
		want[i] = out
	}

	got := make([][]byte, len(inputs))
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := a.Analyze(context.Background(), strings.NewReader(inputs[i]))
			if err != nil {
				errs[i] = err
				return
			}
			got[i], errs[i] = exporter.Export(res.Rows, exporter.DefaultOptions())
		}(i)
	}
	wg.Wait()

	for i := range inputs {
		require.NoError(t, errs[i], "input %d", i)
		assert.Equal(t, string(want[i]), string(got[i]), "input %d", i)
	}
}
