package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Year is the calendar year used as the temporal key of the panel. Both
// sources are normalized to this type before they are joined, so "2010",
// "2010-01-01" and "2010.0" all compare equal.
type Year int

// accepted date layouts, most specific first
var yearLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
}

// ParseYear normalizes a year cell into a Year
func ParseYear(s string) (Year, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, fmt.Errorf("empty year")
	}

	if n, err := strconv.Atoi(v); err == nil {
		return validYear(n, s)
	}

	// Spreadsheets and JSON encoders sometimes render integral years as floats
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f != float64(int(f)) {
			return 0, fmt.Errorf("year %q has a fractional part", s)
		}
		return validYear(int(f), s)
	}

	for _, layout := range yearLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return validYear(t.Year(), s)
		}
	}

	return 0, fmt.Errorf("unrecognized year %q", s)
}

func validYear(n int, raw string) (Year, error) {
	if n < 1 || n > 9999 {
		return 0, fmt.Errorf("year %q out of range", raw)
	}
	return Year(n), nil
}

// String returns the four digit year
func (y Year) String() string {
	return fmt.Sprintf("%04d", int(y))
}

// Int returns the year as an int
func (y Year) Int() int {
	return int(y)
}

// Time returns January 1st of the year in UTC
func (y Year) Time() time.Time {
	return time.Date(int(y), time.January, 1, 0, 0, 0, 0, time.UTC)
}
