package server

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/aggregator"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/analyzer"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/exporter"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/metrics"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/validation"
)

// Download formats.
const (
	formatCSV  = "csv"
	formatXLSX = "xlsx"

	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WarningHeader carries the empty-result warning on downloads.
const WarningHeader = "X-Report-Warning"

// AnalyzeResponse is the JSON preview of one upload.
type AnalyzeResponse struct {
	FileName  string                        `json:"file_name"`
	Summary   types.SummaryStats            `json:"summary"`
	Branches  []types.BranchTotal           `json:"branches"`
	Products  []types.ProductTotal          `json:"products"`
	Rows      []ReportRow                   `json:"rows"`
	RowErrors []*validation.InvalidRowError `json:"row_errors"`
	Warnings  []types.Warning               `json:"warnings"`
}

// ReportRow is one aggregated line in the preview.
type ReportRow struct {
	Shop          string  `json:"shop"`
	ProductCode   string  `json:"product_code"`
	ProductName   string  `json:"product_name"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalSales    float64 `json:"total_sales"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Branches []string
		Columns  []string
		Format   string
	}{
		Branches: s.analyzer.AllowList().Entries(),
		Columns:  types.RequiredColumns,
		Format:   s.defaultFormat,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render index", slog.String("error", err.Error()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":   "ok",
		"branches": s.analyzer.AllowList().Len(),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	name, result, apiErr := s.analyzeUpload(w, r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}

	rows := make([]ReportRow, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = ReportRow{
			Shop:          row.Branch,
			ProductCode:   row.ProductCode,
			ProductName:   row.ProductName,
			TotalQuantity: row.TotalQuantity,
			TotalSales:    row.TotalSales,
		}
	}

	render.JSON(w, r, AnalyzeResponse{
		FileName:  name,
		Summary:   result.Stats,
		Branches:  result.Branches,
		Products:  result.Products,
		Rows:      rows,
		RowErrors: result.RowErrors,
		Warnings:  result.Warnings,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	name, result, apiErr := s.analyzeUpload(w, r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}

	if format == "" {
		format = strings.ToLower(strings.TrimSpace(r.FormValue("format")))
	}
	if format == "" {
		format = s.defaultFormat
	}

	var (
		body        []byte
		err         error
		contentType string
	)
	switch format {
	case formatCSV:
		body, err = exporter.Export(result.Rows, s.exportOpts)
		contentType = contentTypeCSV
	case formatXLSX:
		body, err = exporter.ExportXLSX(result.Rows, aggregator.ProductTotals(result.Rows), result.Stats, s.exportOpts)
		contentType = contentTypeXLSX
	default:
		render.Render(w, r, errInvalidFormat(format))
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "export failed", slog.String("error", err.Error()))
		render.Render(w, r, newAPIError(http.StatusInternalServerError, CodeInternal, "failed to build report", nil))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, ReportFileName(name, format)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	for _, warning := range result.Warnings {
		w.Header().Add(WarningHeader, string(warning))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.WarnContext(r.Context(), "failed to send report", slog.String("error", err.Error()))
	}
}

// analyzeUpload reads the multipart "file" field and runs the analyzer.
func (s *Server) analyzeUpload(w http.ResponseWriter, r *http.Request) (string, *analyzer.Result, *APIError) {
	limit := s.cfg.MaxUploadBytes
	memory := limit
	if limit > 0 {
		if r.ContentLength > limit {
			s.metrics.ObserveFailure(metrics.OutcomeInputError)
			return "", nil, errTooLarge(limit)
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	} else {
		memory = 32 << 20
	}

	if err := r.ParseMultipartForm(memory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.ObserveFailure(metrics.OutcomeInputError)
			return "", nil, errTooLarge(tooLarge.Limit)
		}
		return "", nil, newAPIError(http.StatusBadRequest, CodeInvalidRequest, "expected a multipart/form-data upload", err.Error())
	}

	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errMissingFile()
	}
	defer file.Close()

	name := uploadName(header)
	logger := s.logger.With(slog.String("file", name), slog.Int64("size", header.Size))

	result, err := s.analyzer.AnalyzeFile(r.Context(), name, file)
	if err != nil {
		apiErr := errorFromAnalysis(err)
		outcome := metrics.OutcomeInputError
		if apiErr.ErrorCode == CodeSchemaInvalid {
			outcome = metrics.OutcomeSchemaError
		}
		s.metrics.ObserveFailure(outcome)
		logger.WarnContext(r.Context(), "analysis rejected", slog.String("error", err.Error()))
		return name, nil, apiErr
	}

	s.metrics.ObserveResult(result.Stats, result.Duration)
	return name, result, nil
}

func uploadName(header *multipart.FileHeader) string {
	name := filepath.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "sales.csv"
	}
	return name
}

// ReportFileName derives the download name from the uploaded file name:
// "march.csv" becomes "march_by_product.csv" or "march_by_product.xlsx".
func ReportFileName(upload, format string) string {
	base := strings.TrimSuffix(upload, filepath.Ext(upload))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '"', '/', '\\', '\r', '\n':
			return '_'
		}
		return r
	}, base)
	if strings.TrimSpace(base) == "" {
		base = "sales"
	}
	return base + "_by_product." + format
}
