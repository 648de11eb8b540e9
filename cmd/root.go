// =============================================================================
// Branch Sales Aggregator - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// (process, serve, validate, version) is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (salesagg)
//   ├── processCmd  (salesagg process)
//   ├── serveCmd    (salesagg serve)
//   ├── validateCmd (salesagg validate)
//   └── versionCmd  (salesagg version)
//
// CONFIGURATION:
//   Commands that need configuration call loadApp, which:
//   1. Loads config.yaml and SALESAGG_* overrides
//   2. Applies --verbose (forces debug logging)
//   3. Builds the slog logger
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/analyzer"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/branch"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/config"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "salesagg",
	Short: "Branch Sales Aggregator - per-branch, per-product totals from POS exports",
	Long: `Branch Sales Aggregator reads point-of-sale exports (CSV or XLSX), keeps
the rows of the configured branches, and reports total quantity and total
sales (including tax) per branch and product.

Key Features:
  - Strict header check with every missing column named
  - Bad rows are dropped and counted, never fatal
  - Case-insensitive branch allow-list from config.yaml
  - CSV or XLSX reports
  - Batch processing of an input directory, or an upload server

Example Usage:
  salesagg process                     # Process every export in the input directory
  salesagg process --file march.csv    # Process one file
  salesagg serve --port 8501           # Start the upload server
  salesagg validate --file march.csv   # Check config and a file header`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// app bundles what every command builds from configuration.
type app struct {
	cfg    *config.MainConfig
	logger *slog.Logger
	closer io.Closer
}

// loadApp loads the configuration file and sets up logging.
func loadApp() (*app, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newApp(cfg, verbose)
}

// newApp builds the logger for cfg. debug overrides the configured level.
func newApp(cfg *config.MainConfig, debug bool) (*app, error) {
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return &app{cfg: cfg, logger: logger, closer: closer}, nil
}

// newAnalyzer builds the pipeline for the configured branches.
func (a *app) newAnalyzer() *analyzer.Analyzer {
	allow := branch.NewAllowList(a.cfg.AllowedBranches)
	return analyzer.New(allow, analyzer.OptionsFromConfig(a.cfg), a.logger)
}

// Close releases the log file, if any.
func (a *app) Close() error {
	return a.closer.Close()
}
