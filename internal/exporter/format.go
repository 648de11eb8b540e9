package exporter

import (
	"strconv"
	"strings"
)

// formatNumber formats v with exactly decimals digits after the point.
// A value that rounds to zero is written without a minus sign.
func formatNumber(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.HasPrefix(s, "-") && strings.Trim(s[1:], "0.") == "" {
		return s[1:]
	}
	return s
}
