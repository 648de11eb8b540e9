// =============================================================================
// Branch Sales Aggregator - Configuration Module
// =============================================================================
//
// This module loads the application configuration. There is a single YAML
// file; every value in it can be overridden from the environment with the
// SALESAGG_ prefix (for example SALESAGG_ALLOWED_BRANCHES="AWAISIA,IQBAL TOWN").
//
// LOAD ORDER:
//   1. Read and parse the YAML file
//   2. Apply environment overrides
//   3. Apply default values for anything still unset
//   4. Validate the result
//
// The allowed branch list is read once here and handed to the analyzer as a
// plain value. Nothing in the pipeline reads configuration on its own.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "SALESAGG"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// AllowedBranches is the static list of branch names whose sales are
	// reported. Matching ignores case and surrounding whitespace.
	AllowedBranches []string `yaml:"allowed_branches" envconfig:"ALLOWED_BRANCHES" validate:"required,min=1,dive,required"`

	// MaxConcurrency is the maximum number of files the process command
	// analyzes at the same time.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"min=1,max=64"`

	Paths   PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	CSV     CSVSettings    `yaml:"csv" envconfig:"CSV"`
	Export  ExportSettings `yaml:"export" envconfig:"EXPORT"`
	Logging LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Server  ServerConfig   `yaml:"server" envconfig:"SERVER"`
}

// =============================================================================
// SECTION STRUCTURES
// =============================================================================

// PathsConfig holds the directories used by the process command.
// The HTTP server never touches the file system.
type PathsConfig struct {
	// InputDir is scanned for sales exports.
	// Default: "./input"
	InputDir string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`

	// OutputDir receives the aggregated reports and run summaries.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`

	// InputArchiveDir receives input files after a successful run.
	// Leave empty to keep inputs where they are.
	InputArchiveDir string `yaml:"input_archive_dir" envconfig:"INPUT_ARCHIVE_DIR"`

	// ArchiveByDate files archived inputs under YYYY/MM/DD subdirectories.
	// Default: false
	ArchiveByDate bool `yaml:"archive_by_date" envconfig:"ARCHIVE_BY_DATE"`
}

// CSVSettings controls how uploads are decoded and tabulated.
type CSVSettings struct {
	// Delimiter is the field separator. Accepts a single character or one of
	// "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `yaml:"delimiter" envconfig:"DELIMITER" validate:"required"`

	// Encoding is the character encoding of the export.
	// Valid values: "utf-8", "utf-16", "windows-1252", "iso-8859-1"
	// (also "utf8", "utf16", "cp1252", "latin1")
	// Default: "utf-8"
	Encoding string `yaml:"encoding" envconfig:"ENCODING" validate:"oneof=utf-8 utf-16 windows-1252 iso-8859-1"`

	// SkipSummaryRows drops subtotal lines ("Branch Total", "Grand Total",
	// rows without a shop) before they reach the normalizer.
	// Default: true
	SkipSummaryRows *bool `yaml:"skip_summary_rows" envconfig:"SKIP_SUMMARY_ROWS"`

	// MaxRowErrors caps how many row errors are kept for the preview.
	// Every dropped row is still counted. 0 keeps none.
	// Default: 50
	MaxRowErrors *int `yaml:"max_row_errors" envconfig:"MAX_ROW_ERRORS" validate:"omitempty,min=0"`
}

// ExportSettings controls the downloadable report.
type ExportSettings struct {
	// QuantityDecimals is the number of decimals written for Total Quantity.
	// Default: 0
	QuantityDecimals *int `yaml:"quantity_decimals" envconfig:"QUANTITY_DECIMALS" validate:"omitempty,min=0,max=6"`

	// AmountDecimals is the number of decimals written for Total Sales.
	// Default: 2
	AmountDecimals *int `yaml:"amount_decimals" envconfig:"AMOUNT_DECIMALS" validate:"omitempty,min=0,max=6"`

	// BOM prefixes CSV output with a UTF-8 byte order mark for Excel.
	// Default: false
	BOM bool `yaml:"bom" envconfig:"BOM"`

	// Format is the default download format.
	// Valid values: "csv", "xlsx"
	// Default: "csv"
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=csv xlsx"`

	// OutputNameFormat names report files written by the process command.
	// Placeholders: {original}, {uuid}, {timestamp}, {date}, {time}
	// Default: "{original}_by_product"
	OutputNameFormat string `yaml:"output_name_format" envconfig:"OUTPUT_NAME_FORMAT" validate:"required"`
}

// LoggingConfig controls the slog logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`

	// Output is one of "stdout", "file", "both".
	// Default: "stdout"
	Output string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`

	// FilePath is used when Output is "file" or "both".
	// Default: "./logs/salesagg.log"
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output stdout"`
}

// ServerConfig controls the upload server.
type ServerConfig struct {
	// Port is the TCP port to listen on.
	// Default: 8501
	Port int `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`

	// MaxUploadBytes bounds the size of one upload.
	// Default: 32 MiB
	MaxUploadBytes int64 `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"min=1"`

	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the configuration from a YAML file and the environment.
//
// PARAMETERS:
//   - configPath: The path to the configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying environment
// overrides, defaults and validation in the same way as LoadMainConfig.
func Parse(data []byte) (*MainConfig, error) {
	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Fields without a matching variable are left untouched.
	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}

	// Paths.
	if config.Paths.InputDir == "" {
		config.Paths.InputDir = "./input"
	}
	if config.Paths.OutputDir == "" {
		config.Paths.OutputDir = "./output"
	}

	// CSV settings.
	if config.CSV.Delimiter == "" {
		config.CSV.Delimiter = ","
	}
	config.CSV.Encoding = canonicalEncoding(config.CSV.Encoding)
	if config.CSV.SkipSummaryRows == nil {
		config.CSV.SkipSummaryRows = boolPtr(true)
	}
	if config.CSV.MaxRowErrors == nil {
		config.CSV.MaxRowErrors = intPtr(50)
	}

	// Export settings.
	if config.Export.QuantityDecimals == nil {
		config.Export.QuantityDecimals = intPtr(0)
	}
	if config.Export.AmountDecimals == nil {
		config.Export.AmountDecimals = intPtr(2)
	}
	config.Export.Format = strings.ToLower(config.Export.Format)
	if config.Export.Format == "" {
		config.Export.Format = "csv"
	}
	if config.Export.OutputNameFormat == "" {
		config.Export.OutputNameFormat = "{original}_by_product"
	}

	// Logging.
	config.Logging.Level = strings.ToLower(config.Logging.Level)
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	config.Logging.Output = strings.ToLower(config.Logging.Output)
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}
	if config.Logging.FilePath == "" {
		config.Logging.FilePath = "./logs/salesagg.log"
	}

	// Server.
	if config.Server.Port == 0 {
		config.Server.Port = 8501
	}
	if config.Server.MaxUploadBytes == 0 {
		config.Server.MaxUploadBytes = 32 << 20
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 60 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 15 * time.Second
	}
}

// validate is shared; validator caches struct metadata and is safe for
// concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateMainConfig validates the configuration after defaults are applied.
func validateMainConfig(config *MainConfig) error {
	if err := validate.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if _, err := DelimiterRune(config.CSV.Delimiter); err != nil {
		return err
	}

	seen := make(map[string]bool, len(config.AllowedBranches))
	for _, b := range config.AllowedBranches {
		key := strings.ToLower(strings.TrimSpace(b))
		if key == "" {
			return fmt.Errorf("allowed_branches contains a blank entry")
		}
		if seen[key] {
			return fmt.Errorf("allowed_branches lists %q more than once", strings.TrimSpace(b))
		}
		seen[key] = true
	}

	return nil
}

// DelimiterRune resolves a configured delimiter to the rune encoding/csv
// expects.
func DelimiterRune(delimiter string) (rune, error) {
	switch delimiter {
	case "\\t", "\t", "tab", "TAB":
		return '\t', nil
	case "pipe", "PIPE":
		return '|', nil
	case "semicolon", "SEMICOLON":
		return ';', nil
	}

	runes := []rune(delimiter)
	if len(runes) != 1 {
		return 0, fmt.Errorf("csv delimiter %q must be a single character", delimiter)
	}
	switch runes[0] {
	case '"', '\r', '\n':
		return 0, fmt.Errorf("csv delimiter %q is not allowed", delimiter)
	}
	return runes[0], nil
}

// QuantityPrecision returns the configured quantity decimals.
func (e ExportSettings) QuantityPrecision() int {
	if e.QuantityDecimals == nil {
		return 0
	}
	return *e.QuantityDecimals
}

// AmountPrecision returns the configured amount decimals.
func (e ExportSettings) AmountPrecision() int {
	if e.AmountDecimals == nil {
		return 2
	}
	return *e.AmountDecimals
}

// RowErrorLimit returns how many row errors are kept for display.
func (c CSVSettings) RowErrorLimit() int {
	if c.MaxRowErrors == nil {
		return 50
	}
	return *c.MaxRowErrors
}

// encodingAliases maps the other spellings the CSV decoder understands to
// the names accepted in configuration.
var encodingAliases = map[string]string{
	"":       "utf-8",
	"utf8":   "utf-8",
	"utf16":  "utf-16",
	"cp1252": "windows-1252",
	"latin1": "iso-8859-1",
}

// canonicalEncoding lowercases an encoding name and resolves aliases.
func canonicalEncoding(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := encodingAliases[name]; ok {
		return canonical
	}
	return name
}

// SkipSummary reports whether subtotal lines are skipped.
func (c CSVSettings) SkipSummary() bool {
	return c.SkipSummaryRows == nil || *c.SkipSummaryRows
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }
