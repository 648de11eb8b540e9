// =============================================================================
// Branch Sales Aggregator - Main Entry Point
// =============================================================================
//
// USAGE:
//   salesagg process   - Aggregate every export in the input directory
//   salesagg serve     - Start the upload server
//   salesagg validate  - Validate configuration (and optionally a file header)
//   salesagg version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Parsing, validation, aggregation, export and the server
//   - pkg/       : File handling for batch runs
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/branch-sales-aggregator/cmd"
)

func main() {
	cmd.Execute()
}
