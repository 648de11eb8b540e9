// =============================================================================
// Branch Sales Aggregator - Row Validation
// =============================================================================
//
// Row-level problems never abort a run. Each bad row is described by an
// InvalidRowError, dropped, and counted in the summary.
//
// NUMERIC FORMAT:
//   Amounts in POS exports are written for people, not machines. ParseAmount
//   accepts:
//   - Thousands separators:        "1,250.00"
//   - Currency symbols and codes:  "$12", "Rs. 1,200", "PKR 50", "€3"
//   - Accounting negatives:        "(12.50)"
//   - Trailing minus signs:        "12.50-"
//   Anything else that strconv.ParseFloat rejects is invalid, as are empty
//   cells, NaN and infinities.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Reasons attached to InvalidRowError.
const (
	ReasonEmpty          = "value is empty"
	ReasonNotNumeric     = "value is not a number"
	ReasonNegativePrice  = "retail price is negative"
	ReasonMissingProduct = "product code is empty"
)

var (
	errEmptyAmount   = errors.New(ReasonEmpty)
	errInvalidAmount = errors.New(ReasonNotNumeric)
)

// currencyCodes are stripped from either end of an amount, longest first.
var currencyCodes = []string{"pkr", "rs.", "rs"}

// =============================================================================
// INVALID ROW ERROR
// =============================================================================

// InvalidRowError describes why a single input row was dropped.
type InvalidRowError struct {
	// Line is the 1-based source line of the row.
	Line int `json:"line"`

	// Field is the column that failed.
	Field string `json:"field"`

	// Value is the raw cell content.
	Value string `json:"value"`

	// Reason is a short human-readable explanation.
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e *InvalidRowError) Error() string {
	return fmt.Sprintf("line %d: %s %q: %s", e.Line, e.Field, e.Value, e.Reason)
}

// =============================================================================
// NUMERIC PARSING
// =============================================================================

// ParseAmount parses a human-formatted number.
//
// PARAMETERS:
//   - raw: The cell content.
//
// RETURNS:
//   - The parsed value.
//   - An error whose text is one of the Reason constants.
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errEmptyAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = stripCurrencyCodes(s)

	s = strings.Map(func(r rune) rune {
		if r == ',' || unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if strings.HasSuffix(s, "-") && !strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}

	if s == "" {
		return 0, errInvalidAmount
	}
	if negative && (strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+")) {
		return 0, errInvalidAmount
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errInvalidAmount
	}

	if negative {
		value = -value
	}
	return value, nil
}

// stripCurrencyCodes removes a leading or trailing currency code such as
// "Rs." or "PKR", ignoring case.
func stripCurrencyCodes(s string) string {
	lower := strings.ToLower(s)
	for _, code := range currencyCodes {
		if strings.HasPrefix(lower, code) {
			s = strings.TrimSpace(s[len(code):])
			lower = strings.ToLower(s)
			break
		}
	}
	for _, code := range currencyCodes {
		if strings.HasSuffix(lower, code) {
			s = strings.TrimSpace(s[:len(s)-len(code)])
			break
		}
	}
	return s
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats row errors for display or logging.
func FormatErrors(errs []*InvalidRowError) string {
	if len(errs) == 0 {
		return "No invalid rows."
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "%d invalid row(s):\n", len(errs))
	for i, err := range errs {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, err.Error())
	}
	return builder.String()
}
