// =============================================================================
// Branch Sales Aggregator - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   salesagg validate [--file march.csv]
//
// Loads and validates the configuration without processing anything. With
// --file, also analyzes that file: missing required columns fail the
// command, and rows that would be dropped are listed. No report is written.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/analyzer"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/branch"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/config"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/validation"
)

// validateFile is an export to check.
var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and optionally check one export",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printConfig(out, cfg)

		if validateFile == "" {
			return nil
		}
		return checkFile(cmd.Context(), out, validateFile, cfg)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFile, "file", "", "Export to check without writing a report")
}

func printConfig(out io.Writer, cfg *config.MainConfig) {
	fmt.Fprintf(out, "Configuration OK (%s)\n", cfgFile)
	fmt.Fprintf(out, "  Allowed branches: %s\n", strings.Join(cfg.AllowedBranches, ", "))
	fmt.Fprintf(out, "  Input dir:        %s\n", cfg.Paths.InputDir)
	fmt.Fprintf(out, "  Output dir:       %s\n", cfg.Paths.OutputDir)
	fmt.Fprintf(out, "  Report format:    %s\n", cfg.Export.Format)
	fmt.Fprintf(out, "  Server port:      %d\n", cfg.Server.Port)
}

// checkFile analyzes the file with the configured pipeline and lists the
// rows that would be dropped. Nothing is written.
func checkFile(ctx context.Context, out io.Writer, path string, cfg *config.MainConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	an := analyzer.New(branch.NewAllowList(cfg.AllowedBranches), analyzer.OptionsFromConfig(cfg), nil)
	res, err := an.AnalyzeFile(ctx, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	stats := res.Stats
	fmt.Fprintf(out, "Header OK: %s (%d data row(s), %d dropped, %d filtered, %d report line(s))\n",
		filepath.Base(path), stats.TotalRows, stats.DroppedRows, stats.FilteredRows, stats.OutputRows)
	report := validation.FormatErrors(res.RowErrors)
	fmt.Fprint(out, report)
	if !strings.HasSuffix(report, "\n") {
		fmt.Fprintln(out)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}
	return nil
}
