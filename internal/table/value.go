package table

import (
	"strconv"
	"strings"
	"time"
)

// Layouts tried by ParseTime, most specific first. Sources export dates in
// whichever of these their reporting tool produces.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseNumber parses a cell as a float. Thousands separators are tolerated.
func ParseNumber(v Value) (float64, bool) {
	if v.IsBlank() {
		return 0, false
	}
	s := strings.TrimSpace(v.Raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParsePercent normalizes a percentage-like cell to a float on the 0-100
// scale. The cell may be a plain number or a string with one trailing
// percent sign; anything else fails the parse. This is the single
// normalization every percentage-reading calculator goes through.
func ParsePercent(v Value) (float64, bool) {
	if v.IsBlank() {
		return 0, false
	}
	s := strings.TrimSpace(v.Raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseTime parses a cell against the known source layouts.
func ParseTime(v Value) (time.Time, bool) {
	if v.IsBlank() {
		return time.Time{}, false
	}
	s := strings.TrimSpace(v.Raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ContainsFold reports whether the cell contains the substring,
// case-insensitively. Missing and blank cells never match.
func ContainsFold(v Value, sub string) bool {
	if v.IsBlank() || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(v.Raw), strings.ToLower(sub))
}
