// =============================================================================
// Branch Sales Aggregator - CSV Parser Module
// =============================================================================
//
// This module turns the bytes of an uploaded sales export into a table of
// string records. It handles:
//   - Character decoding (UTF-8 with or without BOM, UTF-16, Windows-1252)
//   - Configurable delimiters (comma by default)
//   - Standard CSV quoting for embedded commas
//   - Blank lines and all-empty records
//
// The parser knows nothing about sales columns. Header checking happens in
// the validation package and row interpretation in the normalizer.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/config"
)

// ErrEmptyInput is returned when the input has no header row.
var ErrEmptyInput = errors.New("input is empty")

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents a parsed export.
type CSVData struct {
	// Headers contains the column headers, trimmed of surrounding whitespace.
	Headers []string

	// Records contains the data records in file order. Records may be
	// shorter or longer than Headers.
	Records [][]string

	// Lines holds the 1-based source line of each record in Records.
	Lines []int

	// RowCount is the number of data records (blank records excluded).
	RowCount int

	// ColumnCount is the number of header columns.
	ColumnCount int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a complete CSV export from r.
//
// PARAMETERS:
//   - r: The raw upload bytes.
//   - settings: The CSV settings from the configuration.
//
// RETURNS:
//   - A pointer to the CSVData struct containing the parsed table.
//   - ErrEmptyInput if there is no header, or a wrapped parse error.
//
// PARSING PROCESS:
//   1. Wrap r in a decoder for the configured encoding
//   2. Configure the CSV reader with the configured delimiter
//   3. Read the first non-blank record as the header
//   4. Read every following non-blank record as data
func Parse(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	decoded, err := decodingReader(r, settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(bufio.NewReader(decoded))
	if err := configureReader(csvReader, settings); err != nil {
		return nil, err
	}

	data := &CSVData{}

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		if isRowEmpty(record) {
			continue
		}

		if data.Headers == nil {
			data.Headers = cleanHeaders(record)
			data.ColumnCount = len(data.Headers)
			continue
		}

		line, _ := csvReader.FieldPos(0)
		data.Records = append(data.Records, record)
		data.Lines = append(data.Lines, line)
	}

	if data.Headers == nil {
		return nil, ErrEmptyInput
	}

	data.RowCount = len(data.Records)
	return data, nil
}

// ParseString is a convenience wrapper for tests and small inputs.
func ParseString(s string, settings config.CSVSettings) (*CSVData, error) {
	return Parse(strings.NewReader(s), settings)
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) error {
	delimiter := settings.Delimiter
	if delimiter == "" {
		delimiter = ","
	}
	comma, err := config.DelimiterRune(delimiter)
	if err != nil {
		return err
	}
	reader.Comma = comma

	// Exports often end rows early or carry trailing empty cells.
	reader.FieldsPerRecord = -1

	// Allow lazy quotes (quotes that don't follow strict CSV rules).
	reader.LazyQuotes = true

	return nil
}

// decodingReader wraps r so that it yields UTF-8.
//
// A UTF-8 or UTF-16 byte order mark always wins over the configured
// encoding, which is how Excel-saved exports are usually recognized.
func decodingReader(r io.Reader, name string) (io.Reader, error) {
	var fallback encoding.Encoding

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		fallback = unicode.UTF8
	case "utf-16", "utf16":
		fallback = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "windows-1252", "cp1252":
		fallback = charmap.Windows1252
	case "iso-8859-1", "latin1":
		fallback = charmap.ISO8859_1
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}

	return transform.NewReader(r, unicode.BOMOverride(fallback.NewDecoder())), nil
}

// cleanHeaders trims header cells. A stray BOM left by a double-encoded
// export is removed as well.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimPrefix(header, "\uFEFF")
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
