// =============================================================================
// Branch Sales Aggregator - Serve Command
// =============================================================================
//
// COMMAND USAGE:
//   salesagg serve [--port 8501]
//
// Starts the upload server. Uploads are analyzed in memory; nothing is
// written to disk. The server stops gracefully on SIGINT or SIGTERM.
//
// =============================================================================

package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/metrics"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/server"
)

// port overrides server.port from the config when non-zero.
var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload server",
	Long: `Start an HTTP server with an upload form, a JSON preview endpoint and a
report download endpoint.

Endpoints:
  GET  /                      Upload form
  POST /api/analyze           JSON preview of an uploaded export
  POST /api/analyze/download  Aggregated report (csv or xlsx)
  GET  /api/health            Health check
  GET  /metrics               Prometheus metrics`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if port != 0 {
			a.cfg.Server.Port = port
		}

		srv := server.New(server.Options{
			Server:   a.cfg.Server,
			Export:   a.cfg.Export,
			Analyzer: a.newAnalyzer(),
			Metrics:  metrics.NewRecorder(),
			Logger:   a.logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.logger.Info("starting server",
			slog.Int("port", a.cfg.Server.Port),
			slog.Any("allowed_branches", a.cfg.AllowedBranches))

		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default from config)")
}
