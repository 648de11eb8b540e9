// =============================================================================
// Branch Sales Aggregator - HTTP Server
// =============================================================================
//
// The server is the interactive front end: a user uploads one export and gets
// back either a JSON preview or the aggregated report as a download.
//
// ROUTES:
//   GET  /                       Upload form
//   POST /api/analyze            JSON preview (summary, totals, row errors)
//   POST /api/analyze/download   Report as CSV or XLSX attachment
//   GET  /api/health             Liveness
//   GET  /metrics                Prometheus metrics
//
// Uploads are held in memory and never written to disk. Every request is
// independent, so concurrent uploads need no coordination.
//
// =============================================================================

package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/analyzer"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/config"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/exporter"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/metrics"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.New("index.html").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(templateFS, "templates/index.html"))

// =============================================================================
// SERVER STRUCTURE
// =============================================================================

// Server serves the upload form and the analysis API.
type Server struct {
	cfg           config.ServerConfig
	analyzer      *analyzer.Analyzer
	exportOpts    exporter.Options
	defaultFormat string
	metrics       *metrics.Recorder
	logger        *slog.Logger
	router        chi.Router
}

// Options collects the dependencies of a Server.
type Options struct {
	Server   config.ServerConfig
	Export   config.ExportSettings
	Analyzer *analyzer.Analyzer
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// New creates a Server and builds its router.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}
	format := strings.ToLower(opts.Export.Format)
	if format == "" {
		format = formatCSV
	}

	s := &Server{
		cfg:           opts.Server,
		analyzer:      opts.Analyzer,
		exportOpts:    exporter.OptionsFromConfig(opts.Export),
		defaultFormat: format,
		metrics:       recorder,
		logger:        logger.With(slog.String("component", "server")),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, newAPIError(http.StatusNotFound, CodeNotFound, "route not found", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, newAPIError(http.StatusMethodNotAllowed, CodeNotAllowed, "method not allowed", r.Method))
	})

	r.Get("/", s.handleIndex)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze/download", s.handleDownload)
	})

	return r
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// ListenAndServe serves on the configured port until ctx is canceled, then
// shuts down gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
