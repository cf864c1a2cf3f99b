package exporter

import (
	"math"
	"strconv"

	"sidrapanel/pkg/contracts/domain"
)

// formatRatio writes a finite ratio with exactly 2 decimal places, so 13.4
// appears as 13.40. Sentinels are written as +Inf, -Inf and NaN.
func formatRatio(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatYear(y domain.Year) string {
	return y.String()
}

// ratioCell returns the value stored in a workbook cell. Spreadsheets have no
// NaN or infinity, so sentinels are stored as text.
func ratioCell(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return formatRatio(f)
	}
	return f
}
